package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/aichat/pkg/provider"
)

// MapHTTPError converts an HTTP response with a non-2xx status code into
// a ProviderError. It attempts to parse the response body to extract the
// vendor's descriptive message.
func MapHTTPError(providerName string, resp *http.Response) *provider.ProviderError {
	message := ExtractErrorMessage(resp.Body)

	if message == "" {
		switch {
		case resp.StatusCode == http.StatusBadRequest:
			message = "invalid request to backend"
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			message = "backend authentication failed"
		case resp.StatusCode == http.StatusNotFound:
			message = "backend resource not found (check model name and base URL)"
		case resp.StatusCode == http.StatusTooManyRequests:
			message = "backend rate limit or quota exceeded"
		case resp.StatusCode >= http.StatusInternalServerError:
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		default:
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)
		}
	}

	return &provider.ProviderError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		Message:    message,
		Err:        fmt.Errorf("%s", http.StatusText(resp.StatusCode)),
	}
}

// MapNetworkError converts a network-level error (connection refused, timeout,
// DNS resolution failure) into a ProviderError.
func MapNetworkError(providerName string, err error) *provider.ProviderError {
	return &provider.ProviderError{
		Provider: providerName,
		Message:  "backend connection error: " + err.Error(),
		Err:      err,
	}
}

// ExtractErrorMessage tries to parse the response body as a vendor error
// envelope and returns the error message if found. Both the nested
// {"error":{"message":...}} form and Ollama's {"error":"..."} are
// understood; any other non-JSON body is returned trimmed.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			return errorMessageFromRaw(envelope.Error)
		}
		return ""
	}

	return Truncate(strings.TrimSpace(string(data)), 200)
}

// errorMessageFromRaw decodes the value of an "error" field, which is
// either a string or an object with a "message" member.
func errorMessageFromRaw(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return Truncate(string(raw), 200)
}
