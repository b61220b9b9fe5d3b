package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/vinylroom/vinylroom-server/internal/errors"
)

// APIError implements huma.StatusError and renders every error response
// as {error, message}, with machine-readable snake_case error codes such
// as "rate_limited".
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"error" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to render domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    codeToWire(domainErr.Code),
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}
		}

		// Parameter validation failures are plain bad requests.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return &APIError{
			status:  status,
			Code:    statusToWire(status),
			Message: message,
		}
	}
}

// codeToWire maps domain error codes to their wire form.
func codeToWire(code domainerrors.Code) string {
	switch code {
	case domainerrors.CodeNotFound:
		return "not_found"
	case domainerrors.CodeUnauthorized:
		return "unauthorized"
	case domainerrors.CodeForbidden:
		return "forbidden"
	case domainerrors.CodeValidation:
		return "validation"
	case domainerrors.CodeRateLimited:
		return "rate_limited"
	case domainerrors.CodeUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// statusToWire maps plain HTTP statuses to wire error codes.
func statusToWire(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadGateway:
		return "upstream"
	default:
		return "internal"
	}
}
