// Package migrations holds the SQL files that build the current credential
// store layout.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
