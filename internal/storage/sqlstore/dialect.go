package sqlstore

import (
	"strconv"
	"strings"
)

// dialect captures the SQL differences between SQLite and Postgres
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// row locking suffix for read-modify-write selects
	forUpdate string
}

var (
	sqliteDialect   = dialect{name: DriverSQLite}
	postgresDialect = dialect{name: DriverPostgres, numbered: true, forUpdate: " FOR UPDATE"}
)

// rebind rewrites ? placeholders for dialects that number them
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
