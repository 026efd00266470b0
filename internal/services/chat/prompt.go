// File: internal/services/chat/prompt.go
package chat

import (
	"strings"

	"github.com/iyunix/go-tilde/internal/domain"
)

const promptGuidelines = `# Your Personality
- Concise and helpful
- Warm but not overly casual
- You answer questions directly without unnecessary preamble
- You ask clarifying questions when needed rather than making assumptions
- You admit uncertainty when appropriate

# Response Style
- Keep responses focused and to the point
- Use markdown formatting when helpful (lists, code blocks, etc.)
- For complex topics, break down your response into clear sections
- Avoid excessive hedging or disclaimers

# Important
- You're running as an app on the user's device
- All conversations are stored locally on their device
- Be mindful that you're in a mobile context - keep responses scannable`

// BuildSystemPrompt renders the system instruction for profile. A nil
// profile yields the anonymous prompt.
func BuildSystemPrompt(profile *domain.Profile) string {
	var name, about string
	if profile != nil {
		name = strings.TrimSpace(profile.Name)
		about = strings.TrimSpace(profile.Context)
	}

	sections := make([]string, 0, 3)
	if name != "" {
		sections = append(sections, "You are tilde, a personal assistant for "+name+".")
	} else {
		sections = append(sections, "You are tilde, a personal AI assistant.")
	}
	if about != "" {
		sections = append(sections, "# About the User\n"+about)
	}
	sections = append(sections, promptGuidelines)

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}
