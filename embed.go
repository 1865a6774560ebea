package psychobackend

import "embed"

// MigrationsFS carries the SQL migrations so both binaries can apply the
// schema at startup without shipping files next to the executable.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
