// Package audit is a supplemental feature beyond the distilled spec: a
// SQLite-backed audit trail recording who uploaded, replaced, or deleted
// which package, and who minted or revoked which API key. It is wired as
// an in-process, fire-and-forget event sink so a slow or stalled disk
// never blocks the request that triggered the event.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pository/pkg/log"
)

// Action identifies the kind of event being recorded.
type Action string

const (
	ActionUpload    Action = "upload"
	ActionReplace   Action = "replace"
	ActionDelete    Action = "delete"
	ActionKeyCreate Action = "key_create"
	ActionKeyDelete Action = "key_delete"
)

// Outcome describes how the action resolved.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Event is one audit record.
type Event struct {
	OccurredAt   time.Time
	Action       Action
	Repo         string
	Package      string
	Version      string
	Architecture string
	Actor        string
	Outcome      Outcome
	Detail       string
}

// queueDepth bounds the in-memory backlog before Record starts dropping
// events rather than blocking the caller.
const queueDepth = 256

// Log is a fire-and-forget audit sink backed by SQLite.
type Log struct {
	db     *sql.DB
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Open creates (or reopens) the audit database at dbPath and starts its
// background writer goroutine. Call Close to drain and stop it.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrDatabaseError, dbPath, err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enabling WAL: %w", ErrDatabaseError, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initializing schema: %w", ErrDatabaseError, err)
	}

	l := &Log{
		db:     db,
		events: make(chan Event, queueDepth),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *Log) run() {
	defer close(l.done)
	for ev := range l.events {
		if err := l.write(ev); err != nil {
			log.Error().Err(err).Str("action", string(ev.Action)).Msg("audit: failed to record event")
		}
	}
}

func (l *Log) write(ev Event) error {
	_, err := l.db.ExecContext(context.Background(),
		`INSERT INTO events (occurred_at, action, repo, package, version, architecture, actor, outcome, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.OccurredAt, string(ev.Action), ev.Repo, ev.Package, ev.Version, ev.Architecture, ev.Actor, string(ev.Outcome), ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// Record enqueues ev for persistence without blocking the caller. If the
// queue is full the event is dropped and logged, rather than applying
// backpressure to the request path.
func (l *Log) Record(ev Event) {
	select {
	case l.events <- ev:
	default:
		log.Warn().Str("action", string(ev.Action)).Msg("audit: queue full, dropping event")
	}
}

// Close stops accepting new events, drains the queue, and closes the
// database.
func (l *Log) Close() error {
	l.once.Do(func() { close(l.events) })
	<-l.done
	return l.db.Close()
}
