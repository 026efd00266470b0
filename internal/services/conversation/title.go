// File: internal/services/conversation/title.go
package conversation

import "strings"

const titleEllipsis = "..."

// DeriveTitle builds a title from message content: the first maxRunes runes,
// trimmed and followed by an ellipsis when the content was longer. Line breaks become
// spaces. Blank content yields an empty string.
func DeriveTitle(content string, maxRunes int) string {
	flat := strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(content))
	runes := []rune(flat)
	if len(runes) <= maxRunes {
		return flat
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + titleEllipsis
}
