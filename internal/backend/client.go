// Package backend reads the IAM collections from the HTTP identity backend
// and normalizes them into canonical access records.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/auth"
)

// Collection paths served by the identity backend.
const (
	PathUsers            = "/users"
	PathGroups           = "/groups"
	PathRoles            = "/roles"
	PathPermissions      = "/permissions"
	PathApplications     = "/applications"
	PathUserGroups       = "/user-groups"
	PathGroupRoles       = "/group-roles"
	PathRolePermissions  = "/role-permissions"
	PathApplicationUsers = "/application-users"
)

const maxBodyBytes = 32 << 20

// ErrStatus marks a non-2xx backend response.
var ErrStatus = errors.New("backend: unexpected status")

// StatusError describes a failed collection read.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s %s returned %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client fetches snapshots from the identity backend.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client is required")
		}
		c.http = hc
		return nil
	}
}

// WithToken sets a service bearer token. Without one the caller's token from
// the request context is forwarded.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = strings.TrimSpace(token)
		return nil
	}
}

// New builds a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http(s): %q", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Snapshot reads all nine collections concurrently. Any failed read fails
// the snapshot so callers never resolve partial data.
func (c *Client) Snapshot(ctx context.Context) (access.Snapshot, error) {
	var (
		users, groups, roles, perms, apps []record
		userGroups, groupRoles, rolePerms []record
		appUsers                          []record
	)
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(path string, dst *[]record) {
		g.Go(func() error {
			recs, err := c.list(gctx, path)
			if err != nil {
				return err
			}
			*dst = recs
			return nil
		})
	}
	fetch(PathUsers, &users)
	fetch(PathGroups, &groups)
	fetch(PathRoles, &roles)
	fetch(PathPermissions, &perms)
	fetch(PathApplications, &apps)
	fetch(PathUserGroups, &userGroups)
	fetch(PathGroupRoles, &groupRoles)
	fetch(PathRolePermissions, &rolePerms)
	fetch(PathApplicationUsers, &appUsers)
	if err := g.Wait(); err != nil {
		return access.Snapshot{}, err
	}

	return access.Snapshot{
		Users:            convert(users, toUser),
		Groups:           convert(groups, toGroup),
		Roles:            convert(roles, toRole),
		Permissions:      convert(perms, toPermission),
		Applications:     convert(apps, toApplication),
		UserGroups:       convert(userGroups, toUserGroup),
		GroupRoles:       convert(groupRoles, toGroupRole),
		RolePermissions:  convert(rolePerms, toRolePermission),
		ApplicationUsers: convert(appUsers, toApplicationUser),
	}, nil
}

// Ping checks that the backend answers the users collection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.list(ctx, PathUsers)
	return err
}

func (c *Client) list(ctx context.Context, path string) ([]record, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := c.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("backend: read %s: %w", path, err)
	}
	recs, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return recs, nil
}

func (c *Client) bearer(ctx context.Context) string {
	if c.token != "" {
		return c.token
	}
	token, _ := auth.TokenFromContext(ctx)
	return token
}

// decodeRecords accepts a bare array or an object wrapping the array under
// data, items or results. An empty body or null is an empty collection.
func decodeRecords(body []byte) ([]record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []record{}, nil
	}
	if body[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, err
		}
		inner, ok := firstPresent(env, "data", "items", "results")
		if !ok {
			return nil, errors.New("object body without data, items or results")
		}
		return decodeRecords(inner)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]record, 0, len(raw))
	for _, el := range raw {
		if obj, ok := el.(map[string]any); ok {
			out = append(out, record(obj))
		}
	}
	return out, nil
}

func firstPresent(env map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := env[k]; ok {
			return v, true
		}
	}
	return nil, false
}
