// Package tenancy pins an authenticated session to the first tenant it enters
// and decides how every later navigation is treated.
package tenancy

import (
	"net/url"
	"strings"
)

const scopedSegment = "tenant"

// LobbyRoutes are the paths a locked session may visit outside its tenant.
type LobbyRoutes []string

// DefaultLobby is used when no lobby routes are configured.
var DefaultLobby = LobbyRoutes{"/", "/tenants", "/onboarding", "/profile", "/logout"}

// Match reports whether path is a lobby route. A route matches itself and
// any path below it; "/" matches only the root.
func (l LobbyRoutes) Match(path string) bool {
	path = cleanPath(path)
	for _, route := range l {
		route = cleanPath(route)
		if route == path {
			return true
		}
		if route != "/" && strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

// Target is a requested path decomposed for the decision table.
type Target struct {
	Path          string `json:"path"`
	Scoped        bool   `json:"scoped"`
	RouteTenantID string `json:"route_tenant_id,omitempty"`
	Lobby         bool   `json:"lobby"`
}

// ParseTarget decomposes path. Query strings and fragments are ignored; a
// tenant segment that is empty or cannot be unescaped is treated as absent.
func ParseTarget(path string, lobby LobbyRoutes) Target {
	path = cleanPath(path)
	t := Target{Path: path}

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if segments[0] == scopedSegment {
		t.Scoped = true
		if len(segments) > 1 {
			t.RouteTenantID = routeTenant(segments[1])
		}
		return t
	}
	t.Lobby = lobby.Match(path)
	return t
}

func routeTenant(segment string) string {
	id, err := url.PathUnescape(segment)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

// TenantPath is the landing path of a tenant.
func TenantPath(tenantID string) string {
	return "/" + scopedSegment + "/" + url.PathEscape(tenantID)
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
