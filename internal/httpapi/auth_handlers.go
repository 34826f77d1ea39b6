package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/audit"
	"github.com/milpatel11/sk-ui-sub001/internal/auth"
	"github.com/milpatel11/sk-ui-sub001/internal/ids"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
	"github.com/milpatel11/sk-ui-sub001/internal/tenancy"
)

type tokenRequest struct {
	User string `json:"user"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAuthToken issues a development token and starts a fresh session.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.tokens == nil {
		writeError(w, r, http.StatusServiceUnavailable, "token issuing is disabled")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, r, http.StatusBadRequest, "user is required")
		return
	}

	sessionID := ids.New()
	sess, err := tenancy.NewSession(sessionID, a.locks)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "session store unavailable")
		return
	}
	if err := sess.Init(r.Context()); err != nil {
		obs.Logger().Error("session init failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	token, expiresAt, err := a.tokens.Issue(user, sessionID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       user,
		"session_id": sessionID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	})
}

// handleLogout ends the caller's session. Its token is refused afterwards
// and the tenant lock is dropped.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	sess, principal, ok := a.callerSession(w, r)
	if !ok {
		return
	}
	if err := sess.End(r.Context()); err != nil {
		obs.Logger().Error("session end failed", zap.String("session_id", sess.ID()), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"session_id": sess.ID(),
		"user":       principal.UserID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// callerSession binds the authenticated caller to its session, writing the
// error response itself when that is not possible.
func (a *API) callerSession(w http.ResponseWriter, r *http.Request) (*tenancy.Session, auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, auth.Principal{}, false
	}
	sess, err := tenancy.NewSession(principal.SessionID, a.locks)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "token carries no session")
		return nil, auth.Principal{}, false
	}
	return sess, principal, true
}
