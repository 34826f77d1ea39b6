package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/auth"
	"github.com/milpatel11/sk-ui-sub001/internal/session"
	"github.com/milpatel11/sk-ui-sub001/internal/tenancy"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	locks   *session.MemoryStore
	t       *testing.T
}

func portalSnapshot() access.Snapshot {
	return access.Snapshot{
		Users: []access.GlobalUser{
			{UserID: "u-admin", Username: "admin"},
			{UserID: "u-ana", Username: "ana"},
			{UserID: "u-bo", Username: "bo"},
		},
		Groups: []access.Group{
			{GroupID: "g-sysadmins", GroupName: "sysadmins"},
			{GroupID: "g-acme-ops", GroupName: "acme ops", TenantID: "acme"},
			{GroupID: "g-globex-ops", GroupName: "globex ops", TenantID: "globex"},
		},
		Roles: []access.Role{
			{RoleID: "r-iam-admin", Name: "iam admin", Scope: access.ScopeGlobal},
			{RoleID: "r-tenant-viewer", Name: "tenant viewer", Scope: access.ScopeTenant},
			{RoleID: "r-shuttle-dispatcher", Name: "dispatcher", Scope: access.ScopeApplication},
		},
		Permissions: []access.Permission{
			{PermissionID: "p-access-read", Name: PermissionAccessRead},
			{PermissionID: "p-tenant-read", Name: "tenant.read"},
			{PermissionID: "p-trips-write", Name: "shuttle.trips.write"},
		},
		Applications: []access.Application{{ApplicationID: "a-shuttle", Name: "Shuttle"}},
		UserGroups: []access.UserGroup{
			{UserID: "u-admin", GroupID: "g-sysadmins"},
			{UserID: "u-ana", GroupID: "g-acme-ops"},
			{UserID: "u-bo", GroupID: "g-globex-ops"},
		},
		GroupRoles: []access.GroupRole{
			{GroupID: "g-sysadmins", RoleID: "r-iam-admin"},
			{GroupID: "g-acme-ops", RoleID: "r-tenant-viewer"},
			{GroupID: "g-globex-ops", RoleID: "r-tenant-viewer"},
		},
		RolePermissions: []access.RolePermission{
			{RoleID: "r-iam-admin", PermissionID: "p-access-read"},
			{RoleID: "r-tenant-viewer", PermissionID: "p-tenant-read"},
			{RoleID: "r-shuttle-dispatcher", PermissionID: "p-trips-write"},
		},
		ApplicationUsers: []access.ApplicationUser{
			{ApplicationID: "a-shuttle", UserID: "u-ana", RoleIDs: []string{"r-shuttle-dispatcher"}},
		},
	}
}

func newTestAPI(t *testing.T, source access.Source) *apiClient {
	t.Helper()

	tokens, err := auth.NewTokenizer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenizer: %v", err)
	}
	locks := session.NewMemoryStore(0)
	api := New(ReadyProbe{}, "test", tokens, source, locks, WithRateLimit(100, 100))

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		locks:   locks,
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) login(user string) (string, tokenResponse) {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{"user": user}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("token status %d", resp.StatusCode)
	}
	out := decode[tokenResponse](c.t, resp)
	if out.Token == "" || out.SessionID == "" {
		c.t.Fatalf("incomplete token response: %+v", out)
	}
	return "Bearer " + out.Token, out
}

func (c *apiClient) navigate(path, bearer string) navigateResult {
	c.t.Helper()
	headers := map[string]string{}
	if bearer != "" {
		headers["Authorization"] = bearer
	}
	resp := c.post("/v1/session/navigate", map[string]any{"path": path}, headers)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("navigate %s: status %d", path, resp.StatusCode)
	}
	return decode[navigateResult](c.t, resp)
}

type navigateResult struct {
	Action   string `json:"action"`
	TenantID string `json:"tenant_id"`
	Location string `json:"location"`
	Path     string `json:"path"`
	Allowed  bool   `json:"allowed"`
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var out T
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAPISessionTenantLockFlow(t *testing.T) {
	c := newTestAPI(t, access.Static(portalSnapshot()))
	bearer, tok := c.login("u-ana")
	headers := map[string]string{"Authorization": bearer}

	sess := decode[sessionResponse](t, c.get("/v1/session", nil, headers))
	if sess.SessionID != tok.SessionID || sess.UserID != "u-ana" || sess.LockedTenantID != "" {
		t.Fatalf("unexpected fresh session: %+v", sess)
	}

	if got := c.navigate("/tenants", bearer); got.Action != "allow" || !got.Allowed {
		t.Fatalf("lobby before lock: %+v", got)
	}

	got := c.navigate("/tenant/acme/dashboard", bearer)
	if got.Action != "set_lock" || got.TenantID != "acme" || !got.Allowed {
		t.Fatalf("first tenant entry: %+v", got)
	}
	if v, ok, _ := c.locks.Get(context.Background(), session.LockKey(tok.SessionID)); !ok || v != "acme" {
		t.Fatalf("lock not stored: %q %v", v, ok)
	}

	if got := c.navigate("/tenant/acme/settings", bearer); got.Action != "allow" || got.TenantID != "acme" {
		t.Fatalf("same tenant: %+v", got)
	}

	got = c.navigate("/tenant/globex", bearer)
	if got.Action != "redirect" || got.Location != "/tenant/acme" || got.Path != "/tenant/acme" || got.Allowed {
		t.Fatalf("cross tenant: %+v", got)
	}

	if got := c.navigate("/reports", bearer); got.Action != "redirect" || got.Location != "/tenant/acme" {
		t.Fatalf("non-lobby while locked: %+v", got)
	}
	if got := c.navigate("/profile/security", bearer); got.Action != "allow" {
		t.Fatalf("lobby while locked: %+v", got)
	}

	sess = decode[sessionResponse](t, c.get("/v1/session", nil, headers))
	if sess.LockedTenantID != "acme" {
		t.Fatalf("expected locked session, got %+v", sess)
	}

	resp := c.post("/v1/auth/logout", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status %d", resp.StatusCode)
	}
	resp.Body.Close()
	if _, ok, _ := c.locks.Get(context.Background(), session.LockKey(tok.SessionID)); ok {
		t.Fatal("logout must clear the lock")
	}

	if got := c.navigate("/tenant/globex", bearer); got.Action != "noop" || got.Allowed {
		t.Fatalf("after logout the token must not relock: %+v", got)
	}
	if _, ok, _ := c.locks.Get(context.Background(), session.LockKey(tok.SessionID)); ok {
		t.Fatal("navigation after logout stored a lock")
	}
	resp = c.get("/v1/session", nil, headers)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("session after logout: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = c.post("/v1/auth/logout", nil, headers)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("second logout: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	bearer2, tok2 := c.login("u-ana")
	if got := c.navigate("/tenant/globex", bearer2); got.Action != "set_lock" || got.TenantID != "globex" {
		t.Fatalf("new login after logout: %+v", got)
	}
	if tok2.SessionID == tok.SessionID {
		t.Fatal("login must start a new session")
	}
}

func TestAPINavigateAnonymous(t *testing.T) {
	c := newTestAPI(t, access.Static(portalSnapshot()))

	got := c.navigate("/tenant/acme", "")
	if got.Action != "noop" || got.Allowed {
		t.Fatalf("anonymous navigation: %+v", got)
	}
	got = c.navigate("/tenant/acme", "Bearer not-a-token")
	if got.Action != "noop" {
		t.Fatalf("invalid token navigation: %+v", got)
	}

	resp := c.post("/v1/session/navigate", map[string]any{"path": " "}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank path, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIUserAccess(t *testing.T) {
	c := newTestAPI(t, access.Static(portalSnapshot()))
	ana, _ := c.login("u-ana")
	admin, _ := c.login("u-admin")

	view := decode[accessResponse](t, c.get("/v1/users/me/access", nil, map[string]string{"Authorization": ana}))
	if view.UserID != "u-ana" {
		t.Fatalf("me alias resolved to %q", view.UserID)
	}
	if !view.HasPermission("shuttle.trips.write") || !view.HasPermission("tenant.read") {
		t.Fatalf("unexpected permissions: %v", view.PermissionNames())
	}
	if !view.CanAccessApplication("a-shuttle") {
		t.Fatal("expected shuttle access")
	}

	resp := c.get("/v1/users/u-bo/access", nil, map[string]string{"Authorization": ana})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for peer lookup, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	view = decode[accessResponse](t, c.get("/v1/users/u-bo/access", nil, map[string]string{"Authorization": admin}))
	if view.UserID != "u-bo" || len(view.EffectiveRoleIDs) != 1 || view.EffectiveRoleIDs[0] != "r-tenant-viewer" {
		t.Fatalf("admin lookup of u-bo: %+v", view)
	}

	scoped := decode[accessResponse](t, c.get("/v1/users/u-bo/access", url.Values{"tenant_id": {"acme"}}, map[string]string{"Authorization": admin}))
	if scoped.TenantID != "acme" || len(scoped.EffectiveRoleIDs) != 0 {
		t.Fatalf("acme scoped view of u-bo: %+v", scoped)
	}

	resp = c.get("/v1/users/u-bo/access", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/users/u-bo/profile", nil, map[string]string{"Authorization": admin})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIGroupMembers(t *testing.T) {
	c := newTestAPI(t, access.Static(portalSnapshot()))
	ana, _ := c.login("u-ana")
	admin, _ := c.login("u-admin")

	out := decode[membersResponse](t, c.get("/v1/groups/g-acme-ops/members", nil, map[string]string{"Authorization": admin}))
	if out.GroupID != "g-acme-ops" || len(out.Members) != 1 || out.Members[0].UserID != "u-ana" {
		t.Fatalf("unexpected members: %+v", out)
	}

	resp := c.get("/v1/groups/g-nope/members", nil, map[string]string{"Authorization": admin})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown group, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/groups/g-acme-ops/members", nil, map[string]string{"Authorization": ana})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without permission, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPISourceFailure(t *testing.T) {
	failing := access.SourceFunc(func(context.Context) (access.Snapshot, error) {
		return access.Snapshot{}, errors.New("backend down")
	})
	c := newTestAPI(t, failing)
	bearer, _ := c.login("u-ana")

	resp := c.get("/v1/users/me/access", nil, map[string]string{"Authorization": bearer})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "failed to load access data" || body["request_id"] == nil {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	c := newTestAPI(t, access.Static(portalSnapshot()))

	resp := c.post("/v1/auth/token", map[string]any{"user": ""}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty user, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/v1/auth/token", map[string]any{"user": "u-ana", "roles": []string{"admin"}}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/auth/token", nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthAndReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	tokens, _ := auth.NewTokenizer("test-secret")
	api := New(ReadyProbe{DB: db}, "v-test", tokens, nil, session.NewMemoryStore(0), WithGuard(tenancy.NewGuard()))
	h := api.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || !bytes.Contains(rr.Body.Bytes(), []byte(`"version":"v-test"`)) {
		t.Fatalf("healthz: %d %s", rr.Code, rr.Body.String())
	}

	mock.ExpectPing()
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d %s", rr.Code, rr.Body.String())
	}

	mock.ExpectPing().WillReturnError(errors.New("db gone"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("redis down") }

func TestReadyProbeChecks(t *testing.T) {
	rp := ReadyProbe{Checks: []Pinger{nil, session.NewMemoryStore(0)}}
	if err := rp.Check(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}
	rp.Checks = append(rp.Checks, failingPinger{})
	if err := rp.Check(context.Background()); err == nil {
		t.Fatal("expected failing pinger to fail readiness")
	}
}
