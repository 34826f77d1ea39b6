package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/milpatel11/sk-ui-sub001/internal/auth"
	"github.com/milpatel11/sk-ui-sub001/internal/tenancy"
)

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	LockedTenantID string    `json:"locked_tenant_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type navigateRequest struct {
	Path string `json:"path"`
}

type navigateResponse struct {
	tenancy.Decision
	Path    string `json:"path"`
	Allowed bool   `json:"allowed"`
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	sess, principal, ok := a.callerSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:      sess.ID(),
		UserID:         principal.UserID,
		LockedTenantID: sess.Locked(r.Context()),
		ExpiresAt:      principal.ExpiresAt,
	})
}

// handleNavigate runs the tenant guard for a navigation of the caller.
// Anonymous callers get a noop decision.
func (a *API) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req navigateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, r, http.StatusBadRequest, "path is required")
		return
	}

	var sess *tenancy.Session
	principal, authenticated := auth.PrincipalFromContext(r.Context())
	if authenticated {
		var err error
		sess, err = tenancy.NewSession(principal.SessionID, a.locks)
		if err != nil {
			authenticated = false
		}
	}

	nav := &requestNavigator{path: req.Path}
	d := a.guard.Navigate(r.Context(), sess, authenticated, nav)
	writeJSON(w, http.StatusOK, navigateResponse{
		Decision: d,
		Path:     nav.CurrentPath(),
		Allowed:  d.Allows(),
	})
}

// requestNavigator records the replacement location of one navigation.
type requestNavigator struct {
	path string
}

func (n *requestNavigator) CurrentPath() string { return n.path }

func (n *requestNavigator) Replace(path string) { n.path = path }
