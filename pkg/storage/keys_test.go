package storage

import (
	"errors"
	"testing"
)

func TestConversationKey(t *testing.T) {
	if got, want := ConversationKey("abc"), "aichat:conversation:abc"; got != want {
		t.Errorf("ConversationKey() = %q, want %q", got, want)
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID(""); !errors.Is(err, ErrInvalidSessionID) {
		t.Errorf("ValidateSessionID(\"\") = %v, want ErrInvalidSessionID", err)
	}
	if err := ValidateSessionID("3f1c"); err != nil {
		t.Errorf("ValidateSessionID() = %v, want nil", err)
	}
}
