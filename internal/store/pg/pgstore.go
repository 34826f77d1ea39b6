// Package pg reads IAM snapshots from PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
)

type Store struct {
	db *sql.DB
}

var _ access.Source = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const (
	qUsers            = `select user_id, username, email, first_name, last_name, tenant_id from iam_users order by user_id`
	qGroups           = `select group_id, group_name, group_description, tenant_id from iam_groups order by group_id`
	qRoles            = `select role_id, name, scope from iam_roles order by role_id`
	qPermissions      = `select permission_id, name, description from iam_permissions order by permission_id`
	qApplications     = `select application_id, name from iam_applications order by application_id`
	qUserGroups       = `select user_id, group_id from iam_user_groups order by user_id, group_id`
	qGroupRoles       = `select group_id, role_id from iam_group_roles order by group_id, role_id`
	qRolePermissions  = `select role_id, permission_id from iam_role_permissions order by role_id, permission_id`
	qApplicationUsers = `select application_id, user_id, role_id from iam_application_user_roles order by application_id, user_id, role_id`
)

// Snapshot reads every IAM collection inside one read-only transaction.
func (s *Store) Snapshot(ctx context.Context) (access.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return access.Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var snap access.Snapshot
	steps := []struct {
		query string
		scan  func(*sql.Rows) error
	}{
		{qUsers, func(r *sql.Rows) error {
			var u access.GlobalUser
			if err := r.Scan(&u.UserID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.TenantID); err != nil {
				return err
			}
			snap.Users = append(snap.Users, u)
			return nil
		}},
		{qGroups, func(r *sql.Rows) error {
			var g access.Group
			if err := r.Scan(&g.GroupID, &g.GroupName, &g.GroupDescription, &g.TenantID); err != nil {
				return err
			}
			snap.Groups = append(snap.Groups, g)
			return nil
		}},
		{qRoles, func(r *sql.Rows) error {
			var role access.Role
			if err := r.Scan(&role.RoleID, &role.Name, &role.Scope); err != nil {
				return err
			}
			snap.Roles = append(snap.Roles, role)
			return nil
		}},
		{qPermissions, func(r *sql.Rows) error {
			var p access.Permission
			if err := r.Scan(&p.PermissionID, &p.Name, &p.Description); err != nil {
				return err
			}
			snap.Permissions = append(snap.Permissions, p)
			return nil
		}},
		{qApplications, func(r *sql.Rows) error {
			var a access.Application
			if err := r.Scan(&a.ApplicationID, &a.Name); err != nil {
				return err
			}
			snap.Applications = append(snap.Applications, a)
			return nil
		}},
		{qUserGroups, func(r *sql.Rows) error {
			var ug access.UserGroup
			if err := r.Scan(&ug.UserID, &ug.GroupID); err != nil {
				return err
			}
			snap.UserGroups = append(snap.UserGroups, ug)
			return nil
		}},
		{qGroupRoles, func(r *sql.Rows) error {
			var gr access.GroupRole
			if err := r.Scan(&gr.GroupID, &gr.RoleID); err != nil {
				return err
			}
			snap.GroupRoles = append(snap.GroupRoles, gr)
			return nil
		}},
		{qRolePermissions, func(r *sql.Rows) error {
			var rp access.RolePermission
			if err := r.Scan(&rp.RoleID, &rp.PermissionID); err != nil {
				return err
			}
			snap.RolePermissions = append(snap.RolePermissions, rp)
			return nil
		}},
		{qApplicationUsers, scanApplicationUser(&snap.ApplicationUsers)},
	}
	for _, step := range steps {
		if err := queryEach(ctx, tx, step.query, step.scan); err != nil {
			return access.Snapshot{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return access.Snapshot{}, err
	}
	return snap, nil
}

// scanApplicationUser folds consecutive (application, user) rows into one
// grant. Rows arrive ordered by application and user.
func scanApplicationUser(dst *[]access.ApplicationUser) func(*sql.Rows) error {
	return func(r *sql.Rows) error {
		var appID, userID, roleID string
		if err := r.Scan(&appID, &userID, &roleID); err != nil {
			return err
		}
		out := *dst
		if n := len(out); n == 0 || out[n-1].ApplicationID != appID || out[n-1].UserID != userID {
			out = append(out, access.ApplicationUser{ApplicationID: appID, UserID: userID, RoleIDs: []string{}})
		}
		if roleID != "" {
			last := &out[len(out)-1]
			last.RoleIDs = append(last.RoleIDs, roleID)
		}
		*dst = out
		return nil
	}
}

func queryEach(ctx context.Context, tx *sql.Tx, query string, scan func(*sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
