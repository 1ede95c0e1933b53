package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/identity"
	"github.com/Rdemo143/RenTO/internal/observability"
	"github.com/Rdemo143/RenTO/internal/transport"
)

type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Auth resolves the bearer credential to an identity and stores it in the
// request context.
func Auth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(identity.TokenFromRequest(r))
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, domain.ErrMissingToken) {
					msg = "missing token"
				}
				observability.GetLogger(r.Context()).Debug("auth rejected", zap.String("path", r.URL.Path), zap.Error(err))
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
