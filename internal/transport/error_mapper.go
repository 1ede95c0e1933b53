package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/observability"
)

// MapError classifies a service error into an HTTP status and error code.
func MapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// Error writes err as a JSON error response. Domain errors expose their
// reason; anything else is logged and hidden behind a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := MapError(err)
	if status >= http.StatusInternalServerError {
		observability.GetLogger(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg := "an unexpected error occurred"
		if status == http.StatusGatewayTimeout {
			msg = "request timed out"
		}
		WriteError(w, status, code, msg)
		return
	}
	WriteError(w, status, code, reason(err))
}

// reason drops the class prefix added by %w wrapping ("not found: x" -> "x").
func reason(err error) string {
	msg := err.Error()
	for _, base := range []error{domain.ErrInvalidRequest, domain.ErrNotFound, domain.ErrForbidden, domain.ErrUnauthorized} {
		if p := base.Error() + ": "; strings.HasPrefix(msg, p) {
			return strings.TrimPrefix(msg, p)
		}
	}
	return msg
}
