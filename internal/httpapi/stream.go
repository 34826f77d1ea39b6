package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/auth"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
)

// StreamAccess handles Server-Sent Events carrying the caller's access view.
// A view is sent on subscribe and again whenever a refresh changes it.
func (a *API) StreamAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.hub == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := a.hub.Subscribe(r.Context())

	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		return
	}

	var last []byte
	for u := range ch {
		view := access.Resolve(principal.UserID, u.Snapshot.ForTenant(tenantID))
		obs.IncAccessResolutions()
		payload, err := json.Marshal(accessResponse{AccessView: view, TenantID: tenantID})
		if err != nil || bytes.Equal(payload, last) {
			continue
		}
		last = payload
		_, _ = w.Write([]byte("event: access\ndata: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
