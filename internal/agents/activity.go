package agents

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// ActivityEntry is one row of the agent activity log.
type ActivityEntry struct {
	ID      int64  `json:"id"`
	TS      string `json:"timestamp"`
	Agent   string `json:"agent"`
	Action  string `json:"action"`
	Details string `json:"details"`
}

// ActivityLog is an append-only trail of what the background agents
// did and when. Writes never fail the caller.
type ActivityLog struct {
	db *sql.DB
}

func NewActivityLog(db *sql.DB) (*ActivityLog, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS activity_log (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts      TEXT NOT NULL,
	agent   TEXT NOT NULL,
	action  TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT ''
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate activity log: %w", err)
	}
	return &ActivityLog{db: db}, nil
}

func (a *ActivityLog) Log(agent, action, details string) {
	_, err := a.db.Exec(
		`INSERT INTO activity_log (ts, agent, action, details) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), agent, action, details)
	if err != nil {
		slog.Error("activity log write failed", "agent", agent, "action", action, "error", err)
	}
}

// Recent returns the newest entries, most recent first.
func (a *ActivityLog) Recent(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, ts, agent, action, details FROM activity_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Agent, &e.Action, &e.Details); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
