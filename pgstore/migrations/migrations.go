// Package migrations embeds the SQL schema migrations applied by
// pgstore.Migrate.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
