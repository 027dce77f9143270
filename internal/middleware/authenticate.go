package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aisaas/backend/internal/auth"
	"github.com/aisaas/backend/internal/logging"
)

// TokenAuthenticator resolves a bearer token to a user id.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// Authenticate attaches the caller's user id to the request context when the request carries
// a valid bearer token. Requests without a usable token pass through unchanged so each handler
// can decide how to respond to an anonymous caller.
func Authenticate(authenticator TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || authenticator == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			userID, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				level := logging.FromContext(ctx).Warn
				if !errors.Is(err, auth.ErrSessionNotFound) && !errors.Is(err, auth.ErrAccessTokenExpired) {
					level = logging.FromContext(ctx).Error
				}
				level("bearer token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx = auth.WithUserID(ctx, userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
