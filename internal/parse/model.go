package parse

import (
	"strings"
	"time"
)

type Message struct {
	Ordinal   int // 1-based, monotonic within the conversation
	Role      string
	Text      string
	Timestamp time.Time
}

type Conversation struct {
	ID       string // slug of the export title, or the source id
	Title    string
	Messages []Message
}

// Slug converts a conversation title into a stable, filesystem-safe id.
func Slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r >= 0x4e00 && r <= 0x9fa5:
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "conversation"
	}
	return out
}
