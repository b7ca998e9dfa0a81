// Package migrations embeds the SQL schema migrations for the inventory
// service. Files run in lexical order at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
