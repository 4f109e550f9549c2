package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/gamewarden/gamewarden/internal/journal"
)

// Sink writes lifecycle events to a SQLite database
// (modernc.org/sqlite driver, CGO-free).
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite journal sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty sqlite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")

	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS server_events(
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			pid INTEGER NOT NULL DEFAULT 0,
			exit_code INTEGER NULL,
			forced BOOLEAN NOT NULL DEFAULT 0,
			detail TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_server_events_type ON server_events(type);`,
		`CREATE INDEX IF NOT EXISTS idx_server_events_time ON server_events(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e journal.Event) error {
	var code sql.NullInt64
	if e.ExitCode != nil {
		code = sql.NullInt64{Int64: int64(*e.ExitCode), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_events(id, type, occurred_at, pid, exit_code, forced, detail)
		VALUES(?, ?, ?, ?, ?, ?, ?);`,
		e.ID, string(e.Type), e.OccurredAt.UTC(), e.PID, code, e.Forced, e.Detail)
	return err
}

// Recent returns the latest n events in reverse chronological order.
func (s *Sink) Recent(ctx context.Context, n int) ([]journal.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, occurred_at, pid, exit_code, forced, detail
		FROM server_events ORDER BY occurred_at DESC LIMIT ?;`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []journal.Event
	for rows.Next() {
		var e journal.Event
		var typ string
		var code sql.NullInt64
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &typ, &e.OccurredAt, &e.PID, &code, &e.Forced, &detail); err != nil {
			return nil, err
		}
		e.Type = journal.EventType(typ)
		if code.Valid {
			c := int(code.Int64)
			e.ExitCode = &c
		}
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
