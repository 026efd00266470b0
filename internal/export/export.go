// File: internal/export/export.go
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/iyunix/go-tilde/internal/domain"
)

// Format names an export encoding.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat maps a query value to a Format. Blank means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatHTML {
		return ".html"
	}
	return ".md"
}

// Exporter renders conversations for download.
type Exporter struct {
	markdown goldmark.Markdown
	location *time.Location
}

// New returns an exporter that formats times in loc (UTC when nil). Message
// bodies go through GitHub flavored markdown; raw HTML in them is escaped.
func New(loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		location: loc,
	}
}

// Markdown returns the stored document unchanged.
func (e *Exporter) Markdown(conv *domain.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	return []byte(conv.Content), nil
}

// HTML renders a standalone page for conv.
func (e *Exporter) HTML(conv *domain.Conversation, messages []domain.Message) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	title := html.EscapeString(conv.Title)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	buf.WriteString("<meta charset=\"UTF-8\">\n")
	buf.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", title)
	buf.WriteString("<meta name=\"generator\" content=\"tilde\">\n")
	buf.WriteString(stylesheet)
	buf.WriteString("</head>\n<body>\n<main>\n")

	fmt.Fprintf(&buf, "<header><h1>%s</h1><p class=\"meta\">%s &middot; %d messages</p></header>\n",
		title, e.formatTime(conv.Created, "January 2, 2006 at 3:04 PM"), len(messages))

	for _, msg := range messages {
		if err := e.renderMessage(&buf, msg); err != nil {
			return nil, err
		}
	}

	buf.WriteString("</main>\n</body>\n</html>\n")
	return buf.Bytes(), nil
}

// Filename suggests a download name for conv in format f.
func Filename(conv *domain.Conversation, f Format) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(conv.Title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "conversation"
	}
	if len(name) > 60 {
		name = strings.TrimRight(name[:60], "-")
	}
	return name + f.Extension()
}

func (e *Exporter) renderMessage(buf *bytes.Buffer, msg domain.Message) error {
	role := string(msg.Role)
	label := "You"
	if msg.Role == domain.RoleAssistant {
		label = "tilde"
	}

	fmt.Fprintf(buf, "<section class=\"message %s\">\n", html.EscapeString(role))
	fmt.Fprintf(buf, "<div class=\"message-header\"><span class=\"role\">%s</span><time>%s</time></div>\n",
		label, e.formatTime(msg.Timestamp, "3:04 PM"))

	if n := len(msg.AttachmentIDs); n > 0 {
		noun := "attachments"
		if n == 1 {
			noun = "attachment"
		}
		fmt.Fprintf(buf, "<p class=\"attachments\">%d %s</p>\n", n, noun)
	}

	buf.WriteString("<div class=\"body\">\n")
	if err := e.markdown.Convert([]byte(msg.Content), buf); err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}
	buf.WriteString("</div>\n</section>\n")
	return nil
}

func (e *Exporter) formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.location).Format(layout)
}

const stylesheet = `<style>
body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; color: #1a1a1a; background: #fafafa; }
main { max-width: 720px; margin: 0 auto; padding: 24px 16px; }
header h1 { font-size: 1.5rem; margin: 0 0 4px; }
.meta, time, .attachments { color: #6b6b6b; font-size: 0.85rem; }
.message { margin: 16px 0; padding: 12px 16px; border-radius: 12px; }
.message.user { background: #eef2ff; }
.message.assistant { background: #ffffff; border: 1px solid #e5e5e5; }
.message-header { display: flex; justify-content: space-between; margin-bottom: 8px; }
.role { font-weight: 600; }
pre { overflow-x: auto; background: #f4f4f4; padding: 8px; border-radius: 6px; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: 4px 8px; }
</style>
`
