package conversation

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an append-only, chronologically ordered list of messages.
type History struct {
	messages []Message
}

func (h *History) Append(role Role, content string) {
	h.messages = append(h.messages, Message{
		Role:    role,
		Content: content,
	})
}

// All returns a copy of the messages in append order.
func (h *History) All() []Message {
	result := make([]Message, len(h.messages))
	copy(result, h.messages)

	return result
}

func (h *History) Len() int {
	return len(h.messages)
}

func (h *History) Last() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}

	return h.messages[len(h.messages)-1], true
}
