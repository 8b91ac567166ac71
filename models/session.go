package models

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is a fragment of a message; only text parts are used.
type Part struct {
	Text string `json:"text"`
}

// Message is a single conversation turn.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a single-part message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Text concatenates all parts of the message.
func (m Message) Text() string {
	if len(m.Parts) == 1 {
		return m.Parts[0].Text
	}
	var out string
	for _, p := range m.Parts {
		out += p.Text
	}
	return out
}

// TrimHistory keeps at most limit trailing messages of history. Whole turns are
// dropped from the oldest side so the result never starts with a model turn.
// A limit of zero or less disables the cap.
func TrimHistory(history []Message, limit int) []Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	trimmed := history[len(history)-limit:]
	for len(trimmed) > 0 && trimmed[0].Role != RoleUser {
		trimmed = trimmed[1:]
	}
	out := make([]Message, len(trimmed))
	copy(out, trimmed)
	return out
}
