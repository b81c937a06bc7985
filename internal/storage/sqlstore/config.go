package sqlstore

import "time"

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds SQL connection settings
type Config struct {
	// Driver is DriverSQLite or DriverPostgres
	Driver string

	// DSN is a file path for SQLite or a connection URL for Postgres
	DSN string

	// Pool settings. SQLite always uses a single connection.
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults for a local SQLite database
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "gaminghub.db",
		MaxOpenConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
	}
}
