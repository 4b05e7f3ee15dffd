package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// Response is the envelope every endpoint responds with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the shape of Response.Error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   &Error{Code: code, Message: message, Details: details},
	})
}

// HandleError maps a domain error to the appropriate status code and
// error taxonomy entry [spec §7].
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		JSONError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)

	case errors.Is(err, domain.ErrTemplateNotFound):
		JSONError(w, http.StatusBadRequest, "TEMPLATE_NOT_FOUND", "no active template for the given code and channel", nil)

	case errors.Is(err, domain.ErrMissingVariables):
		JSONError(w, http.StatusBadRequest, "INVALID_TEMPLATE_ARGS", err.Error(), nil)

	case errors.Is(err, domain.ErrIdempotencyConflict):
		JSONError(w, http.StatusConflict, "IDEMPOTENCY_CONFLICT", "idempotency key already used", nil)

	case errors.Is(err, domain.ErrMissingAPIKey):
		JSONError(w, http.StatusUnauthorized, "MISSING_API_KEY", "X-API-Key header is required", nil)

	case errors.Is(err, domain.ErrInvalidAPIKey):
		JSONError(w, http.StatusUnauthorized, "INVALID_API_KEY", "api key is invalid", nil)

	case errors.Is(err, domain.ErrClientInactive):
		JSONError(w, http.StatusForbidden, "CLIENT_INACTIVE", "api client is inactive", nil)

	case errors.Is(err, domain.ErrRateLimited):
		JSONError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "rate limit exceeded", nil)

	case errors.Is(err, domain.ErrUnknownChannel):
		JSONError(w, http.StatusBadRequest, "UNKNOWN_CHANNEL", "unknown channel", nil)

	case errors.Is(err, domain.ErrChannelDisabled):
		JSONError(w, http.StatusServiceUnavailable, "CHANNEL_DISABLED", "channel is disabled", nil)

	case errors.Is(err, domain.ErrNotConfigured):
		JSONError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "channel is not configured", nil)

	case errors.Is(err, domain.ErrDailyLimitReached):
		JSONError(w, http.StatusServiceUnavailable, "DAILY_LIMIT_EXCEEDED", "channel daily send limit exceeded", nil)

	default:
		var validationErr domain.ValidationError
		if errors.As(err, &validationErr) {
			JSONError(w, http.StatusBadRequest, validationErr.Code, validationErr.Message, map[string]string{
				"field": validationErr.Field,
			})
			return
		}

		JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", nil)
	}
}

// DecodeJSON decodes a JSON request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.NewValidationError("INVALID_BODY", "body", "request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return domain.NewValidationError("INVALID_BODY", "body", "invalid JSON: "+err.Error())
	}

	return nil
}
