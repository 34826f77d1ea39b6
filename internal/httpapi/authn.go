package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/auth"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
	"github.com/milpatel11/sk-ui-sub001/internal/tenancy"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
}

// Paths that serve anonymous callers too; a bad token is treated as none.
var optionalAuthPaths = []string{
	"/v1/session/navigate",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || matchPath(r.URL.Path, publicPaths) {
			next.ServeHTTP(w, r)
			return
		}
		optional := matchPath(r.URL.Path, optionalAuthPaths)

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="portal"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		if a.tokens == nil {
			writeError(w, r, http.StatusInternalServerError, "authentication is not configured")
			return
		}
		principal, err := a.tokens.Verify(token)
		if err != nil {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				w.Header().Set("WWW-Authenticate", `Bearer realm="portal", error="invalid_token"`)
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ended, err := a.sessionEnded(r.Context(), principal.SessionID)
		if err != nil || ended {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				obs.Logger().Error("session state read failed", zap.String("session_id", principal.SessionID), zap.Error(err))
				writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="portal", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "session ended")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionEnded reports whether the session behind a still valid token was
// logged out.
func (a *API) sessionEnded(ctx context.Context, sessionID string) (bool, error) {
	if a.locks == nil {
		return false, nil
	}
	sess, err := tenancy.NewSession(sessionID, a.locks)
	if err != nil {
		// Tokens without a session are rejected later by callerSession.
		return false, nil
	}
	return sess.Ended(ctx)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func matchPath(path string, list []string) bool {
	for _, p := range list {
		if path == p {
			return true
		}
	}
	return false
}
