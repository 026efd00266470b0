// Package document converts between an ordered list of messages and the
// conversation document: a frontmatter block followed by one markdown
// section per message. The package is pure and never touches storage.
package document

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iyunix/go-tilde/internal/domain"
)

const (
	frontmatterDelimiter = "---"
	sectionPrefix        = "## "
	sectionSeparator     = " — "

	// timeLayout is the per-message time token, e.g. "9:05 PM".
	timeLayout = "3:04 PM"
	// isoLayout matches what browsers emit for Date.toISOString.
	isoLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	sectionHeaderPattern = regexp.MustCompile(`^## (user|assistant) — (.*)$`)
	timeTokenPattern     = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)`)
	attachmentRefPattern = regexp.MustCompile(`^!\[attachment\]\(attachments/([^)\s]+)\)$`)
)

// Frontmatter is the metadata block at the head of a document.
type Frontmatter struct {
	ID      string
	Title   string
	Created time.Time
	Updated time.Time
}

// Codec serializes and parses conversation documents. Now supplies the date
// that a parsed "h:mm AM/PM" token is anchored to and the fallback for
// unreadable tokens; Location is the zone times are written and read in.
type Codec struct {
	Now      func() time.Time
	Location *time.Location
}

// New returns a Codec that uses the wall clock and the local time zone.
func New() *Codec {
	return &Codec{Now: time.Now, Location: time.Local}
}

var std = New()

// Serialize renders messages into a document using the default codec.
func Serialize(id, title string, messages []domain.Message) string {
	return std.Serialize(id, title, messages)
}

// Parse decodes the messages of a document using the default codec.
func Parse(text string) []domain.Message {
	return std.Parse(text)
}

// AttachmentRef returns the reference line that embeds an attachment id.
func AttachmentRef(id string) string {
	return "![attachment](attachments/" + id + ")"
}

// HasSectionHeader reports whether content contains a line that the parser
// would read as the start of a new message.
func HasSectionHeader(content string) bool {
	for _, line := range strings.Split(normalizeNewlines(content), "\n") {
		if sectionHeaderPattern.MatchString(line) {
			return true
		}
	}
	return false
}

// Serialize renders messages into a document whose created and updated
// fields are both the serialization time.
func (c *Codec) Serialize(id, title string, messages []domain.Message) string {
	now := c.now()
	return c.SerializeDocument(Frontmatter{ID: id, Title: title, Created: now, Updated: now}, messages)
}

// SerializeDocument renders messages under the given frontmatter. A zero
// Updated becomes the serialization time and a zero Created follows Updated.
func (c *Codec) SerializeDocument(fm Frontmatter, messages []domain.Message) string {
	if fm.Updated.IsZero() {
		fm.Updated = c.now()
	}
	if fm.Created.IsZero() {
		fm.Created = fm.Updated
	}

	var b strings.Builder
	b.WriteString(frontmatterDelimiter + "\n")
	writeField(&b, "id", fm.ID)
	writeField(&b, "title", fm.Title)
	writeField(&b, "created", fm.Created.UTC().Format(isoLayout))
	writeField(&b, "updated", fm.Updated.UTC().Format(isoLayout))
	b.WriteString(frontmatterDelimiter + "\n\n")

	for _, msg := range messages {
		b.WriteString(sectionPrefix)
		b.WriteString(string(msg.Role))
		b.WriteString(sectionSeparator)
		b.WriteString(msg.Timestamp.In(c.location()).Format(timeLayout))
		b.WriteString("\n\n")

		for _, attachmentID := range msg.AttachmentIDs {
			b.WriteString(AttachmentRef(attachmentID))
			b.WriteString("\n\n")
		}

		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

// Parse decodes the messages of a document. It never fails: missing
// metadata is ignored and unreadable time tokens fall back to now.
func (c *Codec) Parse(text string) []domain.Message {
	_, messages, _ := c.ParseDocument(text)
	return messages
}

// ParseDocument decodes both the frontmatter and the messages. The boolean
// reports whether a frontmatter block was found.
func (c *Codec) ParseDocument(text string) (Frontmatter, []domain.Message, bool) {
	fields, body, found := splitFrontmatter(normalizeNewlines(text))

	fm := Frontmatter{
		ID:      fields["id"],
		Title:   fields["title"],
		Created: parseISO(fields["created"]),
		Updated: parseISO(fields["updated"]),
	}

	return fm, c.parseBody(body), found
}

// section is a message block between two headers.
type section struct {
	role  domain.Role
	stamp string
	lines []string
}

func (c *Codec) parseBody(body string) []domain.Message {
	var sections []section

	for _, line := range strings.Split(body, "\n") {
		if m := sectionHeaderPattern.FindStringSubmatch(line); m != nil {
			sections = append(sections, section{role: domain.Role(m[1]), stamp: m[2]})
			continue
		}
		// Text before the first header is not part of any message.
		if len(sections) > 0 {
			last := &sections[len(sections)-1]
			last.lines = append(last.lines, line)
		}
	}

	messages := make([]domain.Message, 0, len(sections))
	for _, s := range sections {
		messages = append(messages, c.buildMessage(s))
	}
	return messages
}

func (c *Codec) buildMessage(s section) domain.Message {
	var attachmentIDs []string

	// Reference lines sit directly under the header, separated by blank lines.
	i := 0
	for ; i < len(s.lines); i++ {
		trimmed := strings.TrimSpace(s.lines[i])
		if trimmed == "" {
			continue
		}
		m := attachmentRefPattern.FindStringSubmatch(trimmed)
		if m == nil {
			break
		}
		attachmentIDs = append(attachmentIDs, m[1])
	}

	return domain.Message{
		Role:          s.role,
		Content:       strings.TrimSpace(strings.Join(s.lines[i:], "\n")),
		Timestamp:     c.parseTimeToken(s.stamp),
		AttachmentIDs: attachmentIDs,
	}
}

// parseTimeToken anchors an "h:mm AM/PM" token to today's date. Anything it
// cannot read yields the current time.
func (c *Codec) parseTimeToken(token string) time.Time {
	now := c.now().In(c.location())

	m := timeTokenPattern.FindStringSubmatch(token)
	if m == nil {
		return now
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return now
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return now
	}

	switch strings.ToUpper(m[3]) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}

	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, c.location())
}

func (c *Codec) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Codec) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// splitFrontmatter separates the leading "---" block from the body. When no
// well-formed block is present the whole text is the body.
func splitFrontmatter(text string) (map[string]string, string, bool) {
	opening := frontmatterDelimiter + "\n"
	if !strings.HasPrefix(text, opening) {
		return map[string]string{}, text, false
	}
	rest := text[len(opening):]

	var block, body string
	switch {
	case strings.HasPrefix(rest, opening):
		body = rest[len(opening):]
	case strings.Contains(rest, "\n"+opening):
		idx := strings.Index(rest, "\n"+opening)
		block = rest[:idx]
		body = rest[idx+len(opening)+1:]
	case strings.HasSuffix(rest, "\n"+frontmatterDelimiter):
		block = strings.TrimSuffix(rest, "\n"+frontmatterDelimiter)
	default:
		return map[string]string{}, text, false
	}

	fields := make(map[string]string)
	for _, line := range strings.Split(block, "\n") {
		colon := strings.Index(line, ":")
		if colon <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		fields[key] = strings.TrimSpace(line[colon+1:])
	}
	return fields, body, true
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(singleLine(value))
	b.WriteString("\n")
}

// singleLine keeps a frontmatter value on one line.
func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func parseISO(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, isoLayout, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
