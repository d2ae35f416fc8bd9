package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every schema change; each file registers itself and bun derives the
// migration name from that file's name.
var Migrations = migrate.NewMigrations()
