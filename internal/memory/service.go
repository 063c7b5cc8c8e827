package memory

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DuplicateThreshold is the cosine similarity at or above which two
// records of the same (user, type) are considered the same event.
const DuplicateThreshold = 0.97

// Ingest result statuses, stable across the HTTP API.
const (
	StatusSaved     = "raw_data_saved"
	StatusDuplicate = "duplicate_skipped"
)

// ErrEmbeddingUnavailable is returned when the embedding service could
// not produce a vector; nothing is stored in that case.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// IngestResult reports the outcome of an ingestion.
type IngestResult struct {
	Status string  `json:"status"`
	ID     string  `json:"id"`
	Score  float64 `json:"score,omitempty"` // similarity to existing record, duplicates only
}

// Service provides write-time-deduplicated ingestion and similarity
// search over the memory collection.
type Service struct {
	store    *SQLiteStore
	embedder Embedder
}

// NewService wires the store to an embedding provider.
func NewService(store *SQLiteStore, embedder Embedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// ContentID derives the deterministic record identifier from the
// scoping user and the embedded text: the same content from the same
// user always maps to the same id, making re-ingestion idempotent. The
// first 16 bytes of the SHA-256 digest are rendered in UUID form.
func ContentID(userID, embedText string) string {
	sum := sha256.Sum256([]byte(userID + ":" + embedText))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// Unreachable: FromBytes only fails on length != 16.
		return fmt.Sprintf("%x", sum[:16])
	}
	return id.String()
}

// Ingest embeds embedText and stores a new record unless a near
// duplicate already exists in the (userID, typ) namespace. Duplicate
// detection is similarity-based rather than exact-text: the same
// real-world event arrives phrased slightly differently on each
// collection pass, while scoping by type keeps unrelated content from
// being merged.
func (s *Service) Ingest(ctx context.Context, userID, displayText, embedText, typ string) (IngestResult, error) {
	if embedText == "" {
		embedText = displayText
	}
	if typ == "" {
		typ = TypeRawIngestion
	}

	vec := s.embedder.Embed(ctx, embedText)
	if len(vec) == 0 {
		return IngestResult{}, ErrEmbeddingUnavailable
	}

	id, score, ok, err := s.store.Nearest(ctx, userID, typ, vec)
	if err != nil {
		return IngestResult{}, fmt.Errorf("duplicate check: %w", err)
	}
	if ok && score >= DuplicateThreshold {
		slog.Debug("duplicate memory skipped", "id", id, "score", score)
		return IngestResult{Status: StatusDuplicate, ID: id, Score: score}, nil
	}

	rec := Record{
		ID:        ContentID(userID, embedText),
		UserID:    userID,
		Type:      typ,
		Memory:    displayText,
		EmbedText: embedText,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Embedding: vec,
	}
	if err := s.store.UpsertRecord(ctx, rec); err != nil {
		return IngestResult{}, fmt.Errorf("store record: %w", err)
	}

	slog.Info("memory saved", "id", rec.ID, "type", typ, "chars", len(displayText))
	return IngestResult{Status: StatusSaved, ID: rec.ID}, nil
}

// Count reports how many memories userID has stored.
func (s *Service) Count(ctx context.Context, userID string) int {
	return s.store.Count(ctx, userID)
}

// Search embeds the query and returns scored hits for userID at or
// above minScore, best first. An unavailable embedding service yields
// an empty result list, not an error.
func (s *Service) Search(ctx context.Context, userID, query string, limit int, minScore float64) ([]SearchHit, error) {
	vec := s.embedder.Embed(ctx, query)
	if len(vec) == 0 {
		return nil, nil
	}
	return s.store.SearchByVector(ctx, userID, vec, limit, minScore)
}
