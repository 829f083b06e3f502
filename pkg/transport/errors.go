package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/aichat/pkg/api"
)

// apiErrorer is implemented by domain errors that know their client-facing
// shape, such as *provider.ProviderError.
type apiErrorer interface {
	APIError() *api.APIError
}

// ToAPIError converts a handler error into its client-facing form. Errors
// without one become a generic server error, so internal text such as
// database messages never reaches the client.
func ToAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var conv apiErrorer
	if errors.As(err, &conv) {
		return conv.APIError()
	}
	return api.NewServerError("internal server error")
}

// WriteErrorResponse writes apiErr as a JSON ErrorResponse with an
// explicit status, for transport-level failures such as 413 and 415.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes apiErr with the status of its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, apiErr.Type.Status())
}

// WriteError converts err with ToAPIError and writes it.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, ToAPIError(err))
}
