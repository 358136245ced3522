// Package migrations embeds the goose migrations of the PostgreSQL
// profile store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
