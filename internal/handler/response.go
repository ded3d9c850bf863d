package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/sumire/federation/internal/domain"
)

// Envelope is the standard API response wrapper.
type Envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error in the API response.
type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// OutcomeResponse is the JSON form of a resolution outcome.
type OutcomeResponse struct {
	Outcome  domain.OutcomeKind  `json:"outcome"`
	Provider domain.ProviderKind `json:"provider,omitempty"`
	Message  string              `json:"message"`
	Account  *AccountResponse    `json:"account,omitempty"`
}

func newOutcomeResponse(out domain.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Outcome:  out.Kind,
		Provider: out.Provider,
		Message:  out.Message(),
	}
	if out.Authenticated() {
		resp.Account = newAccountResponse(out.Identity)
	}
	return resp
}

// JSON writes a JSON response with the standard envelope.
func JSON(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Data: data})
}

// outcomePath returns the frontend page a browser lands on after a callback.
func outcomePath(out domain.Outcome) string {
	switch out.Kind {
	case domain.OutcomeCreated, domain.OutcomeSignedIn:
		return "/"
	case domain.OutcomeLinked, domain.OutcomeAlreadyLinked, domain.OutcomeLinkConflict:
		return "/account"
	default:
		return "/login"
	}
}

// outcomeRedirectURL builds the frontend URL carrying the outcome to show.
func outcomeRedirectURL(frontendURL string, out domain.Outcome) string {
	q := url.Values{}
	q.Set("outcome", string(out.Kind))
	if out.Provider != "" {
		q.Set("provider", string(out.Provider))
	}
	return frontendURL + outcomePath(out) + "?" + q.Encode()
}

// HTTPErrorHandler is the global error handler for echo.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, apiErr := mapError(err)
	if jsonErr := c.JSON(status, Envelope{Error: &apiErr}); jsonErr != nil {
		slog.Error("failed to send error response", "error", jsonErr)
	}
}

func mapError(err error) (int, APIError) {
	// Handle echo's own HTTP errors (404, 405, etc.)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, APIError{
			Code:    http.StatusText(echoErr.Code),
			Message: msg,
		}
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "The requested resource was not found",
		}
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound, APIError{
			Code:    "unknown_provider",
			Message: "This sign-in method is not available",
		}
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusUnauthorized, APIError{
			Code:    string(domain.OutcomeInvalidCredential),
			Message: "Invalid email or password.",
		}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, APIError{
			Code:    "unauthorized",
			Message: "Authentication is required",
		}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: "You do not have permission to perform this action",
		}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, APIError{
			Code:    "invalid_input",
			Message: "The request body is invalid",
		}
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicateEmail), errors.Is(err, domain.ErrDuplicateProviderID):
		return http.StatusConflict, APIError{
			Code:    "conflict",
			Message: "The resource already exists or conflicts with current state",
		}
	case errors.Is(err, domain.ErrProviderUnavailable), errors.Is(err, domain.ErrMalformedProfile):
		return http.StatusBadGateway, APIError{
			Code:    "provider_error",
			Message: "The identity provider could not complete the request",
		}
	default:
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			return http.StatusBadRequest, APIError{
				Code:    "validation_error",
				Message: "Validation failed",
				Details: []FieldError{
					{Field: validationErr.Field, Message: validationErr.Message},
				},
			}
		}

		slog.Error("unhandled error", "error", err)
		return http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "An unexpected error occurred",
		}
	}
}
