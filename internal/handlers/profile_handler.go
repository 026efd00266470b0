// File: internal/handlers/profile_handler.go
package handlers

import (
	"net/http"

	"github.com/iyunix/go-tilde/internal/dtos"
	"github.com/iyunix/go-tilde/internal/services/profile"
)

type ProfileHandler struct {
	profiles *profile.Service
	logger   Logger
}

func NewProfileHandler(ps *profile.Service, logger Logger) *ProfileHandler {
	return &ProfileHandler{profiles: ps, logger: logger}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "GetProfile", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FromProfile(*p))
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dtos.ProfileUpdateRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	p, err := h.profiles.UpdateProfile(r.Context(), req.Name, req.Context)
	if err != nil {
		writeServiceError(w, h.logger, "UpdateProfile", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FromProfile(*p))
}

func (h *ProfileHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.respondSettings(w, r, "GetSettings")
}

// UpdateSettings applies only the fields present in the body.
func (h *ProfileHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch profile.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if _, err := h.profiles.UpdateSettings(r.Context(), patch); err != nil {
		writeServiceError(w, h.logger, "UpdateSettings", err)
		return
	}
	h.respondSettings(w, r, "UpdateSettings")
}

// SaveCredentials stores the API key with the profile. A changed key is
// checked against the provider first.
func (h *ProfileHandler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	var req dtos.CredentialsRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := h.profiles.SaveCredentials(r.Context(), req.APIKey, req.Name, req.Context); err != nil {
		writeServiceError(w, h.logger, "SaveCredentials", err)
		return
	}
	h.respondSettings(w, r, "SaveCredentials")
}

func (h *ProfileHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	var req dtos.OnboardingRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	p, err := h.profiles.CompleteOnboarding(r.Context(), profile.Onboarding{
		Name:     req.Name,
		Purposes: req.Purposes,
		Style:    req.Style,
		APIKey:   req.APIKey,
	})
	if err != nil {
		writeServiceError(w, h.logger, "CompleteOnboarding", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FromProfile(*p))
}

// ===== HELPERS =====

func (h *ProfileHandler) respondSettings(w http.ResponseWriter, r *http.Request, op string) {
	settings, err := h.profiles.GetSettings(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, op, err)
		return
	}
	hasKey, err := h.profiles.HasAPIKey(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FromSettings(*settings, hasKey))
}
