//go:build nogeminiapi

package gemini

import (
	"errors"
	"testing"
)

func TestNew_CompiledOut(t *testing.T) {
	_, err := New(Config{APIKey: "k", Model: "m"})
	if !errors.Is(err, ErrIntegrationUnavailable) {
		t.Fatalf("expected ErrIntegrationUnavailable, got %v", err)
	}
}
