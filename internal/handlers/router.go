// File: internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router bundles the handlers and the middleware chains mounted on them.
type Router struct {
	Conversations *ConversationHandler
	Chat          *ChatHandler
	Attachments   *AttachmentHandler
	Profile       *ProfileHandler
	Logs          *LogHandler

	AllowedOrigin string               // CORS origin; "*" when empty
	Global        []mux.MiddlewareFunc // Applied to every route
	Protected     []mux.MiddlewareFunc // Applied to /api routes except blobs
}

// NewRouter mounts every route. Global middleware wraps the whole router,
// first entry outermost, so it also sees unmatched and preflight requests.
func NewRouter(rt Router) http.Handler {
	r := mux.NewRouter()

	// --- Public Routes ---
	r.HandleFunc("/health", Health).Methods(http.MethodGet)
	// Blob handles are capability URLs issued to authenticated callers.
	r.HandleFunc("/api/blobs/{handle}", rt.Attachments.ServeBlob).Methods(http.MethodGet)

	// --- API Routes ---
	api := r.PathPrefix("/api").Subrouter()
	for _, mw := range rt.Protected {
		api.Use(mw)
	}

	api.HandleFunc("/conversations", rt.Conversations.ListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", rt.Conversations.CreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", rt.Conversations.GetConversation).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", rt.Conversations.RenameConversation).Methods(http.MethodPatch)
	api.HandleFunc("/conversations/{id}", rt.Conversations.DeleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/messages", rt.Conversations.GetMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/export", rt.Conversations.ExportConversation).Methods(http.MethodGet)

	api.HandleFunc("/chat/stream", rt.Chat.StreamChat).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/stream", rt.Chat.CancelStream).Methods(http.MethodDelete)

	api.HandleFunc("/conversations/{id}/attachments", rt.Attachments.UploadAttachments).Methods(http.MethodPost)
	api.HandleFunc("/attachments/{id}", rt.Attachments.GetAttachment).Methods(http.MethodGet)
	api.HandleFunc("/attachments/{id}", rt.Attachments.DeleteAttachment).Methods(http.MethodDelete)

	api.HandleFunc("/profile", rt.Profile.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", rt.Profile.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/settings", rt.Profile.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", rt.Profile.UpdateSettings).Methods(http.MethodPatch)
	api.HandleFunc("/settings/credentials", rt.Profile.SaveCredentials).Methods(http.MethodPost)
	api.HandleFunc("/onboarding", rt.Profile.CompleteOnboarding).Methods(http.MethodPost)

	api.HandleFunc("/log", rt.Logs.LogFrontendEvent).Methods(http.MethodPost)

	// --- Custom Error Handlers ---
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	var h http.Handler = corsMiddleware(rt.AllowedOrigin)(r)
	for i := len(rt.Global) - 1; i >= 0; i-- {
		h = rt.Global[i](h)
	}
	return h
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func corsMiddleware(origin string) mux.MiddlewareFunc {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
