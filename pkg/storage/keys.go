package storage

// KeyPrefix namespaces every key aichat writes to a shared key-value
// backend.
const KeyPrefix = "aichat:"

// ConversationKey returns the key under which a session's conversation
// is stored.
func ConversationKey(sessionID string) string {
	return KeyPrefix + "conversation:" + sessionID
}

// SystemPromptKey is the cache key of the resolved dynamic system prompt.
const SystemPromptKey = KeyPrefix + "system_prompt"

// ValidateSessionID rejects empty identifiers.
func ValidateSessionID(id string) error {
	if id == "" {
		return ErrInvalidSessionID
	}
	return nil
}
