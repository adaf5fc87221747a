package session

import "strings"

// Roles of a conversation message.
const (
	RoleUser = "user"
	RoleLLM  = "llm"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// AsText flattens messages into "role: content" lines, optionally preceded
// by a preamble line.
func AsText(msgs []Message, preamble string) string {
	var b strings.Builder
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteByte('\n')
	}
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
