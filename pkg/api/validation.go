package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxMessageLength bounds a single user message in runes.
const DefaultMaxMessageLength = 32768

// ValidateMessageText checks user input before it becomes a conversation
// turn. It rejects empty and whitespace-only text and text longer than
// maxLen runes (maxLen <= 0 disables the length check).
func ValidateMessageText(text string, maxLen int) *APIError {
	if strings.TrimSpace(text) == "" {
		return NewInvalidRequestError("message", "message must not be empty")
	}
	if !utf8.ValidString(text) {
		return NewInvalidRequestError("message", "message must be valid UTF-8")
	}
	if maxLen > 0 {
		if n := utf8.RuneCountInString(text); n > maxLen {
			return NewInvalidRequestError("message",
				fmt.Sprintf("message exceeds maximum length of %d characters (got %d)", maxLen, n))
		}
	}
	return nil
}

// ValidateConversation checks that every stored turn has a known role.
// Stores call it when decoding persisted data so that a corrupted record
// surfaces as an error instead of being forwarded to a vendor.
func ValidateConversation(c Conversation) error {
	for i, m := range c {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	return nil
}
