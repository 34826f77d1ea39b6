package pg

import "embed"

// Files holds the goose migrations and seeds of the IAM schema under
// the migrations and seeds directories.
//
//go:embed migrations/*.sql seeds/*.sql
var Files embed.FS

const (
	MigrationsDir = "migrations"
	SeedsDir      = "seeds"
)
