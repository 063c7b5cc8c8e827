package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the vector collection on SQLite. Embeddings
// are stored as JSON columns and scored in memory; for a single-user
// local collection this is cheaper than running a separate vector
// database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the memory database at the given
// path and initializes the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("memory store opened", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'raw_ingestion',
			memory TEXT NOT NULL,
			embed_text TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			embedding TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_user_type ON memories(user_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(status)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// UpsertRecord inserts or replaces a record. Replays with the same id
// produce the same stored state.
func (s *SQLiteStore) UpsertRecord(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	embJSON, err := json.Marshal(r.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories (id, user_id, type, memory, embed_text, status, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Type, r.Memory, r.EmbedText, r.Status, r.CreatedAt, string(embJSON))
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Nearest returns the single nearest neighbor to vec among records
// with the given user and type. ok is false when the namespace holds
// no comparable records.
func (s *SQLiteStore) Nearest(ctx context.Context, userID, typ string, vec []float32) (id string, score float64, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, embedding FROM memories WHERE user_id = ? AND type = ?", userID, typ)
	if err != nil {
		return "", 0, false, fmt.Errorf("nearest query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rid, embJSON string
		if err := rows.Scan(&rid, &embJSON); err != nil {
			continue
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil || len(emb) == 0 {
			continue
		}
		if sim := CosineSimilarity(vec, emb); !ok || sim > score {
			id, score, ok = rid, sim, true
		}
	}
	return id, score, ok, rows.Err()
}

// SearchByVector returns records for userID scored against vec, at or
// above minScore, ordered by descending similarity, capped at limit.
func (s *SQLiteStore) SearchByVector(ctx context.Context, userID string, vec []float32, limit int, minScore float64) ([]SearchHit, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, memory, embedding FROM memories WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var id, mem, embJSON string
		if err := rows.Scan(&id, &mem, &embJSON); err != nil {
			continue
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil || len(emb) == 0 {
			continue
		}
		if sim := CosineSimilarity(vec, emb); sim >= minScore {
			hits = append(hits, SearchHit{ID: id, Memory: mem, Score: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// ListPending returns up to limit records for userID that have not
// been marked processed, payloads included.
func (s *SQLiteStore) ListPending(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, memory, embed_text, status, created_at
		FROM memories WHERE user_id = ? AND status != ? LIMIT ?`,
		userID, StatusProcessed, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.Memory, &r.EmbedText, &r.Status, &r.CreatedAt); err != nil {
			continue
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// MarkProcessed records the one-way unset→processed transition for a
// record. The record's payload is otherwise untouched.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE memories SET status = ? WHERE id = ?", StatusProcessed, id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s not found", id)
	}
	return nil
}

// Count returns the number of stored records for a user, all users
// when userID is empty.
func (s *SQLiteStore) Count(ctx context.Context, userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if userID == "" {
		s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&count)
	} else {
		s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE user_id = ?", userID).Scan(&count)
	}
	return count
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
