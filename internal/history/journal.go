// Package history keeps a durable journal of project lifecycle events.
//
// Status changes and crashes are recorded to a SQLite database so that
// `devboot history` can show what happened to a project across supervisor
// restarts. Log lines are not recorded.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/logging"
)

// DefaultLimit is the number of records Recent returns when asked for none.
const DefaultLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    TEXT    NOT NULL,
	type          TEXT    NOT NULL,
	state         TEXT    NOT NULL DEFAULT '',
	restart_count INTEGER NOT NULL DEFAULT 0,
	will_restart  INTEGER NOT NULL DEFAULT 0,
	exit_code     INTEGER,
	at            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_project ON events (project_id, id);
`

// Record is one journaled event.
type Record struct {
	ID           int64     `json:"id"`
	ProjectID    string    `json:"project_id"`
	Type         string    `json:"type"`
	State        string    `json:"state,omitempty"`
	RestartCount int       `json:"restart_count,omitempty"`
	WillRestart  bool      `json:"will_restart,omitempty"`
	ExitCode     *int      `json:"exit_code,omitempty"`
	At           time.Time `json:"at"`
}

// Journal is the SQLite-backed event journal.
type Journal struct {
	db     *sql.DB
	logger *logging.Logger

	mu   sync.Mutex
	sub  *event.Subscription
	done chan struct{}
}

// Open opens (creating if needed) the journal at path with WAL journaling
// and a busy timeout, and applies the schema.
func Open(path string, logger *logging.Logger) (*Journal, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewIOError("failed to create history directory", err).WithPath(filepath.Dir(path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewIOError("failed to open history database", err).WithPath(path)
	}

	ctx := context.Background()
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, errors.NewIOError("failed to initialize history database", err).WithPath(path)
		}
	}

	return &Journal{db: db, logger: logger.WithComponent("history")}, nil
}

// Append journals e. Only status changes and crashes are recorded; other
// events are ignored.
func (j *Journal) Append(ctx context.Context, e event.Event) error {
	var (
		state        string
		restartCount int
		willRestart  bool
		exitCode     *int
	)
	switch ev := e.(type) {
	case event.StatusChangedEvent:
		state = ev.State
	case event.CrashedEvent:
		restartCount = ev.RestartCount
		willRestart = ev.WillRestart
		code := ev.ExitCode
		exitCode = &code
	default:
		return nil
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (project_id, type, state, restart_count, will_restart, exit_code, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ProjectID(), e.EventType(), state, restartCount, willRestart, exitCode, e.Timestamp().UnixNano())
	if err != nil {
		return errors.NewIOError("failed to record event", err)
	}
	return nil
}

// Attach subscribes the journal to bus. Events are written from a single
// goroutine in delivery order until Close.
func (j *Journal) Attach(bus *event.Bus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.sub != nil {
		return
	}

	j.sub = bus.Subscribe(0, event.TypeStatusChanged, event.TypeCrashed)
	j.done = make(chan struct{})
	go func(sub *event.Subscription, done chan struct{}) {
		defer close(done)
		for e := range sub.Events() {
			if err := j.Append(context.Background(), e); err != nil {
				j.logger.Warn("failed to journal event",
					"project_id", e.ProjectID(),
					"type", e.EventType(),
					"error", err)
			}
		}
	}(j.sub, j.done)
}

// Recent returns up to limit records for projectID, newest first. An empty
// projectID returns records for every project.
func (j *Journal) Recent(ctx context.Context, projectID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, project_id, type, state, restart_count, will_restart, exit_code, at FROM events`
	args := []any{}
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewIOError("failed to query history", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Record{}
	for rows.Next() {
		var (
			r        Record
			exitCode sql.NullInt64
			at       int64
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Type, &r.State, &r.RestartCount, &r.WillRestart, &exitCode, &at); err != nil {
			return nil, errors.NewIOError("failed to read history", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			r.ExitCode = &code
		}
		r.At = time.Unix(0, at)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIOError("failed to read history", err)
	}
	return out, nil
}

// Purge deletes every record for projectID and returns how many were
// removed.
func (j *Journal) Purge(ctx context.Context, projectID string) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, errors.NewIOError(fmt.Sprintf("failed to purge history for %s", projectID), err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		j.logger.Debug("history purged", "project_id", projectID, "rows", n)
	}
	return n, nil
}

// Close detaches from the bus, waits for pending writes and closes the
// database.
func (j *Journal) Close() error {
	j.mu.Lock()
	sub, done := j.sub, j.done
	j.sub, j.done = nil, nil
	j.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
	return j.db.Close()
}
