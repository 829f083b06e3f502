package api

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single chat turn. Messages have no identity beyond their
// position in a Conversation; two messages with the same role and content
// are equal.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage returns a user turn.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage returns an assistant turn.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage returns a system instruction.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Conversation is the chronological message log of one session.
// The core only ever appends to it; past entries are never rewritten.
type Conversation []Message

// Append returns a copy of c with msgs added at the end. The receiver's
// backing array is never shared with the result, so a stored conversation
// cannot be modified through a later append.
func (c Conversation) Append(msgs ...Message) Conversation {
	out := make(Conversation, 0, len(c)+len(msgs))
	out = append(out, c...)
	return append(out, msgs...)
}

// Len returns the number of turns.
func (c Conversation) Len() int {
	return len(c)
}

// Last returns the most recent message and true, or a zero Message and
// false for an empty conversation.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}
