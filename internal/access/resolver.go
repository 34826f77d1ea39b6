package access

import (
	"slices"
	"sort"
	"strings"
)

// Resolve derives the access view of userID from snap.
//
// Join rows that point at missing records are skipped, never reported: an
// unknown user, or a snapshot missing auxiliary collections, yields empty
// sets. snap is not modified.
func Resolve(userID string, snap Snapshot) AccessView {
	view := AccessView{
		UserID:                 userID,
		MemberGroupIDs:         []string{},
		EffectiveRoleIDs:       []string{},
		EffectiveRoles:         []Role{},
		EffectivePermissions:   []Permission{},
		AccessibleApplications: []Application{},
		ApplicationRoles:       map[string][]string{},
	}
	if strings.TrimSpace(userID) == "" {
		return view
	}

	groups := make(idSet, len(snap.Groups))
	for _, g := range snap.Groups {
		groups.add(g.GroupID)
	}
	members := make(idSet)
	for _, ug := range snap.UserGroups {
		if ug.UserID == userID && groups.has(ug.GroupID) {
			members.add(ug.GroupID)
		}
	}

	roleIDs := make(idSet)
	for _, gr := range snap.GroupRoles {
		if members.has(gr.GroupID) {
			roleIDs.add(gr.RoleID)
		}
	}

	appIDs := make(idSet)
	appRoles := make(map[string]idSet)
	for _, au := range snap.ApplicationUsers {
		if au.UserID != userID {
			continue
		}
		appIDs.add(au.ApplicationID)
		granted, ok := appRoles[au.ApplicationID]
		if !ok {
			granted = make(idSet)
			appRoles[au.ApplicationID] = granted
		}
		for _, id := range au.RoleIDs {
			roleIDs.add(id)
			granted.add(id)
		}
	}

	permIDs := make(idSet)
	for _, rp := range snap.RolePermissions {
		if roleIDs.has(rp.RoleID) {
			permIDs.add(rp.PermissionID)
		}
	}

	view.MemberGroupIDs = members.sorted()
	view.EffectiveRoleIDs = roleIDs.sorted()

	seenRoles := make(idSet)
	for _, r := range snap.Roles {
		if roleIDs.has(r.RoleID) && !seenRoles.has(r.RoleID) {
			seenRoles.add(r.RoleID)
			view.EffectiveRoles = append(view.EffectiveRoles, r)
		}
	}
	sort.Slice(view.EffectiveRoles, func(i, j int) bool {
		return view.EffectiveRoles[i].RoleID < view.EffectiveRoles[j].RoleID
	})

	seenPerms := make(idSet)
	for _, p := range snap.Permissions {
		if permIDs.has(p.PermissionID) && !seenPerms.has(p.PermissionID) {
			seenPerms.add(p.PermissionID)
			view.EffectivePermissions = append(view.EffectivePermissions, p)
		}
	}
	sort.Slice(view.EffectivePermissions, func(i, j int) bool {
		return view.EffectivePermissions[i].PermissionID < view.EffectivePermissions[j].PermissionID
	})

	seenApps := make(idSet)
	for _, a := range snap.Applications {
		if appIDs.has(a.ApplicationID) && !seenApps.has(a.ApplicationID) {
			seenApps.add(a.ApplicationID)
			view.AccessibleApplications = append(view.AccessibleApplications, a)
			view.ApplicationRoles[a.ApplicationID] = appRoles[a.ApplicationID].sorted()
		}
	}
	sort.Slice(view.AccessibleApplications, func(i, j int) bool {
		return view.AccessibleApplications[i].ApplicationID < view.AccessibleApplications[j].ApplicationID
	})

	return view
}

// GroupMembers returns the users belonging to groupID, ordered by user id.
// Membership rows for unknown users are skipped.
func GroupMembers(groupID string, snap Snapshot) []GlobalUser {
	ids := make(idSet)
	for _, ug := range snap.UserGroups {
		if ug.GroupID == groupID {
			ids.add(ug.UserID)
		}
	}
	out := []GlobalUser{}
	seen := make(idSet)
	for _, u := range snap.Users {
		if ids.has(u.UserID) && !seen.has(u.UserID) {
			seen.add(u.UserID)
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ForTenant returns a copy of s limited to global groups and the groups of
// tenantID, along with the membership and grant rows that reference them.
// An empty tenantID returns s unchanged.
func (s Snapshot) ForTenant(tenantID string) Snapshot {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return s
	}
	out := s
	kept := make(idSet)
	out.Groups = make([]Group, 0, len(s.Groups))
	for _, g := range s.Groups {
		if g.Global() || g.TenantID == tenantID {
			kept.add(g.GroupID)
			out.Groups = append(out.Groups, g)
		}
	}
	out.UserGroups = make([]UserGroup, 0, len(s.UserGroups))
	for _, ug := range s.UserGroups {
		if kept.has(ug.GroupID) {
			out.UserGroups = append(out.UserGroups, ug)
		}
	}
	out.GroupRoles = make([]GroupRole, 0, len(s.GroupRoles))
	for _, gr := range s.GroupRoles {
		if kept.has(gr.GroupID) {
			out.GroupRoles = append(out.GroupRoles, gr)
		}
	}
	return out
}

type idSet map[string]struct{}

func (s idSet) add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func containsSorted(ids []string, id string) bool {
	_, ok := slices.BinarySearch(ids, id)
	return ok
}
