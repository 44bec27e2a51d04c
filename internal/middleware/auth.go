// Package middleware holds the HTTP wrappers shared by every route.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/sirupsen/logrus"
)

// ProfileLoader resolves the profile a token was issued for.
type ProfileLoader interface {
	Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// TokenFrom reads the session token from the auth cookie, falling back to an
// Authorization: Bearer header.
func TokenFrom(r *http.Request) string {
	if c, err := r.Cookie(auth.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate attaches the caller's auth.Identity to the request context.
// Requests without a usable token continue anonymously; handlers decide
// whether that is enough.
func Authenticate(sessions *auth.Sessions, profiles ProfileLoader, logger logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFrom(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := sessions.AuthenticateJWT(token)
			if err != nil {
				logger.WithError(err).WithField("remote", r.RemoteAddr).Debug("ignoring invalid session token")
				next.ServeHTTP(w, r)
				return
			}
			p, err := profiles.Profile(r.Context(), id)
			if err != nil {
				logger.WithError(err).WithField("profile_id", id).Debug("session token for unknown profile")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), auth.IdentityOf(p))))
		})
	}
}
