// Package access derives a user's effective groups, roles, permissions and
// applications from relational snapshots of the identity backend.
package access

// Role scopes.
const (
	ScopeGlobal      = "GLOBAL"
	ScopeTenant      = "TENANT"
	ScopeApplication = "APPLICATION"
)

// GlobalUser is the identity anchor, unique by UserID.
type GlobalUser struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
}

// Group is a named set of users. An empty TenantID marks a global group.
type Group struct {
	GroupID          string `json:"group_id"`
	GroupName        string `json:"group_name"`
	GroupDescription string `json:"group_description,omitempty"`
	TenantID         string `json:"tenant_id,omitempty"`
}

// Global reports whether the group belongs to no tenant.
func (g Group) Global() bool { return g.TenantID == "" }

type Role struct {
	RoleID string `json:"role_id"`
	Name   string `json:"name"`
	Scope  string `json:"scope"`
}

type Permission struct {
	PermissionID string `json:"permission_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
}

type Application struct {
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
}

// UserGroup is a membership row.
type UserGroup struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
}

// GroupRole grants a role to every member of a group.
type GroupRole struct {
	GroupID string `json:"group_id"`
	RoleID  string `json:"role_id"`
}

// RolePermission grants a permission to holders of a role.
type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// ApplicationUser grants roles to a user directly, scoped to one application.
type ApplicationUser struct {
	ApplicationID string   `json:"application_id"`
	UserID        string   `json:"user_id"`
	RoleIDs       []string `json:"role_ids"`
}

// Snapshot is one read of every collection the resolver consumes. Callers
// treat it as immutable once handed over.
type Snapshot struct {
	Users            []GlobalUser      `json:"users"`
	Groups           []Group           `json:"groups"`
	Roles            []Role            `json:"roles"`
	Permissions      []Permission      `json:"permissions"`
	Applications     []Application     `json:"applications"`
	UserGroups       []UserGroup       `json:"user_groups"`
	GroupRoles       []GroupRole       `json:"group_roles"`
	RolePermissions  []RolePermission  `json:"role_permissions"`
	ApplicationUsers []ApplicationUser `json:"application_users"`
}

// AccessView is the derived access summary for one user.
type AccessView struct {
	UserID                 string              `json:"user_id"`
	MemberGroupIDs         []string            `json:"member_group_ids"`
	EffectiveRoleIDs       []string            `json:"effective_role_ids"`
	EffectiveRoles         []Role              `json:"effective_roles"`
	EffectivePermissions   []Permission        `json:"effective_permissions"`
	AccessibleApplications []Application       `json:"accessible_applications"`
	ApplicationRoles       map[string][]string `json:"application_roles"`
}

// HasRole reports whether roleID is among the effective roles.
func (v AccessView) HasRole(roleID string) bool {
	return containsSorted(v.EffectiveRoleIDs, roleID)
}

// HasPermission reports whether a permission with the given name is effective.
func (v AccessView) HasPermission(name string) bool {
	for _, p := range v.EffectivePermissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

// CanAccessApplication reports whether appID is among accessible applications.
func (v AccessView) CanAccessApplication(appID string) bool {
	for _, a := range v.AccessibleApplications {
		if a.ApplicationID == appID {
			return true
		}
	}
	return false
}

// PermissionNames lists effective permission names in permission id order.
func (v AccessView) PermissionNames() []string {
	out := make([]string, 0, len(v.EffectivePermissions))
	for _, p := range v.EffectivePermissions {
		out = append(out, p.Name)
	}
	return out
}
