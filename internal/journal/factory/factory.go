// Package factory builds journal sinks from a DSN string.
package factory

import (
	"strings"

	"github.com/gamewarden/gamewarden/internal/journal"
	"github.com/gamewarden/gamewarden/internal/journal/postgres"
	"github.com/gamewarden/gamewarden/internal/journal/sqlite"
)

// New selects a sink implementation by DSN scheme. An empty DSN
// disables the journal and returns (nil, nil); a plain path or
// sqlite:// prefix selects SQLite, postgres:// selects PostgreSQL.
func New(dsn string) (journal.Sink, error) {
	d := strings.TrimSpace(dsn)
	if d == "" {
		return nil, nil
	}
	ld := strings.ToLower(d)
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return postgres.New(d)
	}
	return sqlite.New(d)
}
