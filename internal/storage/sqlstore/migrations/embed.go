package migrations

import "embed"

// FS contains the embedded schema migrations shared by the SQLite and Postgres dialects.
//
//go:embed *.sql
var FS embed.FS
