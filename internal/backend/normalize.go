package backend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
)

// record is one loosely shaped backend object.
type record map[string]any

// str returns the first non-empty value stored under any of keys.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		if s := scalar(r[k]); s != "" {
			return s
		}
	}
	return ""
}

// list returns the ids stored under the first present key. Elements may be
// scalars or objects carrying one of the id keys.
func (r record) list(keys []string, idKeys ...string) []string {
	for _, k := range keys {
		raw, ok := r[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, el := range raw {
			var id string
			if obj, ok := el.(map[string]any); ok {
				id = record(obj).str(idKeys...)
			} else {
				id = scalar(el)
			}
			if id != "" {
				out = append(out, id)
			}
		}
		return out
	}
	return nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func normalizeScope(s string) string {
	switch s = strings.ToUpper(strings.TrimSpace(s)); s {
	case access.ScopeGlobal, access.ScopeTenant, access.ScopeApplication:
		return s
	default:
		return ""
	}
}

func toUser(r record) (access.GlobalUser, bool) {
	u := access.GlobalUser{
		UserID:    r.str("user_id", "userId", "id"),
		Username:  r.str("username", "userName", "login"),
		Email:     r.str("email", "emailAddress"),
		FirstName: r.str("first_name", "firstName"),
		LastName:  r.str("last_name", "lastName"),
		TenantID:  r.str("tenant_id", "tenantId"),
	}
	return u, u.UserID != ""
}

func toGroup(r record) (access.Group, bool) {
	g := access.Group{
		GroupID:          r.str("group_id", "groupId", "id"),
		GroupName:        r.str("group_name", "groupName", "name"),
		GroupDescription: r.str("group_description", "groupDescription", "description"),
		TenantID:         r.str("tenant_id", "tenantId"),
	}
	return g, g.GroupID != ""
}

func toRole(r record) (access.Role, bool) {
	role := access.Role{
		RoleID: r.str("role_id", "roleId", "id"),
		Name:   r.str("name", "role_name", "roleName"),
		Scope:  normalizeScope(r.str("scope", "role_scope", "roleScope")),
	}
	return role, role.RoleID != ""
}

func toPermission(r record) (access.Permission, bool) {
	p := access.Permission{
		PermissionID: r.str("permission_id", "permissionId", "id"),
		Name:         r.str("name", "permission_name", "permissionName"),
		Description:  r.str("description"),
	}
	return p, p.PermissionID != ""
}

func toApplication(r record) (access.Application, bool) {
	a := access.Application{
		ApplicationID: r.str("application_id", "applicationId", "app_id", "appId", "id"),
		Name:          r.str("name", "application_name", "applicationName"),
	}
	return a, a.ApplicationID != ""
}

func toUserGroup(r record) (access.UserGroup, bool) {
	ug := access.UserGroup{
		UserID:  r.str("user_id", "userId"),
		GroupID: r.str("group_id", "groupId"),
	}
	return ug, ug.UserID != "" && ug.GroupID != ""
}

func toGroupRole(r record) (access.GroupRole, bool) {
	gr := access.GroupRole{
		GroupID: r.str("group_id", "groupId"),
		RoleID:  r.str("role_id", "roleId"),
	}
	return gr, gr.GroupID != "" && gr.RoleID != ""
}

func toRolePermission(r record) (access.RolePermission, bool) {
	rp := access.RolePermission{
		RoleID:       r.str("role_id", "roleId"),
		PermissionID: r.str("permission_id", "permissionId"),
	}
	return rp, rp.RoleID != "" && rp.PermissionID != ""
}

func toApplicationUser(r record) (access.ApplicationUser, bool) {
	au := access.ApplicationUser{
		ApplicationID: r.str("application_id", "applicationId", "app_id", "appId"),
		UserID:        r.str("user_id", "userId"),
		RoleIDs:       r.list([]string{"role_ids", "roleIds", "roles"}, "role_id", "roleId", "id"),
	}
	if au.RoleIDs == nil {
		au.RoleIDs = []string{}
	}
	return au, au.ApplicationID != "" && au.UserID != ""
}

func convert[T any](records []record, fn func(record) (T, bool)) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if v, ok := fn(r); ok {
			out = append(out, v)
		}
	}
	return out
}
