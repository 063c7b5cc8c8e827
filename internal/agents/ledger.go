package agents

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Ledger records which emails have already been handled so that a
// crash between drafting a reply and marking the thread read never
// produces a second draft.
//
// Reads fail open (unknown email → not processed) and writes are
// logged but never surfaced to the caller: the agents keep running
// on a degraded ledger rather than stopping.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) (*Ledger, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS processed_emails (
	email_id     TEXT PRIMARY KEY,
	draft_id     TEXT NOT NULL DEFAULT '',
	processed_at TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// IsProcessed reports whether emailID already has a ledger entry.
// A query failure is treated as "not processed".
func (l *Ledger) IsProcessed(ctx context.Context, emailID string) bool {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_emails WHERE email_id = ?`, emailID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false
	case err != nil:
		slog.Error("ledger lookup failed", "email_id", emailID, "error", err)
		return false
	}
	return true
}

// Record writes the ledger entry for emailID. It must be called as
// soon as the draft exists, before any mailbox mutation.
func (l *Ledger) Record(ctx context.Context, emailID, draftID string) {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_emails (email_id, draft_id, processed_at) VALUES (?, ?, ?)`,
		emailID, draftID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		slog.Error("ledger write failed", "email_id", emailID, "error", err)
	}
}
