package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/auth"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
)

// PermissionAccessRead lets a caller inspect other users and groups.
const PermissionAccessRead = "iam.access.read"

var (
	errUpstream = errors.New("snapshot source failed")
	errNotFound = errors.New("not found")
)

type accessResponse struct {
	access.AccessView
	TenantID string `json:"tenant_id,omitempty"`
}

type membersResponse struct {
	GroupID string              `json:"group_id"`
	Members []access.GlobalUser `json:"members"`
}

// GET /v1/users/{id}/access
func (a *API) handleUserAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, ok := pathParam(r.URL.Path, "/v1/users/", "access")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if userID == "me" {
		userID = principal.UserID
	}

	snap, err := a.snapshot(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if userID != principal.UserID {
		if err := requireAccessRead(principal, snap); err != nil {
			handleAccessError(w, r, err)
			return
		}
	}

	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	view := access.Resolve(userID, snap.ForTenant(tenantID))
	obs.IncAccessResolutions()
	writeJSON(w, http.StatusOK, accessResponse{AccessView: view, TenantID: tenantID})
}

// GET /v1/groups/{id}/members
func (a *API) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	groupID, ok := pathParam(r.URL.Path, "/v1/groups/", "members")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	snap, err := a.snapshot(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if err := requireAccessRead(principal, snap); err != nil {
		handleAccessError(w, r, err)
		return
	}
	if !groupExists(snap, groupID) {
		handleAccessError(w, r, fmt.Errorf("group %q: %w", groupID, errNotFound))
		return
	}
	writeJSON(w, http.StatusOK, membersResponse{GroupID: groupID, Members: access.GroupMembers(groupID, snap)})
}

func (a *API) snapshot(ctx context.Context) (access.Snapshot, error) {
	if a.source == nil {
		return access.Snapshot{}, fmt.Errorf("%w: no source configured", errUpstream)
	}
	snap, err := a.source.Snapshot(ctx)
	if err != nil {
		obs.IncSnapshotFetchErrors("http")
		obs.Logger().Warn("snapshot fetch failed", zap.Error(err))
		return access.Snapshot{}, fmt.Errorf("%w: %v", errUpstream, err)
	}
	return snap, nil
}

func requireAccessRead(p auth.Principal, snap access.Snapshot) error {
	if access.Resolve(p.UserID, snap).HasPermission(PermissionAccessRead) {
		return nil
	}
	return auth.ErrForbidden
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "missing permission "+PermissionAccessRead)
	case errors.Is(err, errNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, errUpstream):
		writeError(w, r, http.StatusBadGateway, "failed to load access data")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// pathParam extracts {id} from prefix + "{id}/" + suffix.
func pathParam(path, prefix, suffix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return "", false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != suffix || strings.TrimSpace(parts[0]) == "" {
		return "", false
	}
	return parts[0], true
}

func groupExists(snap access.Snapshot, groupID string) bool {
	for _, g := range snap.Groups {
		if g.GroupID == groupID {
			return true
		}
	}
	return false
}
