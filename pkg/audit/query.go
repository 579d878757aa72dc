package audit

import (
	"context"
	"fmt"
)

// Filter narrows ListEvents to a repo and/or a maximum number of most
// recent rows. An empty Repo matches every repo.
type Filter struct {
	Repo  string
	Limit int
}

// ListEvents returns matching events, most recent first.
func (l *Log) ListEvents(f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT occurred_at, action, repo, package, version, architecture, actor, outcome, detail
	          FROM events`
	args := []interface{}{}
	if f.Repo != "" {
		query += ` WHERE repo = ?`
		args = append(args, f.Repo)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.OccurredAt, &ev.Action, &ev.Repo, &ev.Package, &ev.Version, &ev.Architecture, &ev.Actor, &ev.Outcome, &ev.Detail); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return events, nil
}
