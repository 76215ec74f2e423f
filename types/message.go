package types

import "encoding/json"

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one message of a conversational exchange.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	Extensible
}

// NewChatMessage creates a message with the given role and content.
func NewChatMessage(role Role, content string) *ChatMessage {
	return &ChatMessage{Role: role, Content: content}
}

// Kind implements Record.
func (m *ChatMessage) Kind() RecordKind { return KindChatMessage }

// Clone returns a deep copy.
func (m *ChatMessage) Clone() *ChatMessage {
	out := *m
	out.Extensions = m.Extensions.Clone()
	return &out
}

// MarshalJSON inlines extension fields next to the base fields.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type alias ChatMessage
	return marshalRecord(KindChatMessage, alias(m), m.Extensions)
}

// UnmarshalJSON keeps unknown fields as extensions.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias ChatMessage
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	ext, err := unmarshalExtensions(KindChatMessage, data)
	if err != nil {
		return err
	}
	*m = ChatMessage(a)
	m.Extensions = ext
	return nil
}
