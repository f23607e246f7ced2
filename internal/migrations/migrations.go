// Package migrations embeds the goose schema for both supported dialects.
// Timestamps are stored as Unix nanoseconds and money as decimal text so the
// two schemas stay column-compatible.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

// Dir returns the migration directory for a goose dialect.
func Dir(gooseDialect string) string {
	if gooseDialect == "postgres" {
		return "postgres"
	}
	return "sqlite"
}
