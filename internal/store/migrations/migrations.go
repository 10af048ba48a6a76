// Package migrations embeds the goose migration set applied to a fresh or
// upgraded local database. Callers pass Migrations to goose.SetBaseFS.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
