// Package memory owns the vector memory collection: write-time
// deduplicated storage of embedded text records, namespaced by user
// and content type, with cosine-similarity search.
package memory

import "context"

// Content types for stored records.
const (
	TypeRawIngestion  = "raw_ingestion"
	TypeBrowsingEvent = "browsing_event"
)

// StatusProcessed marks a record as already handled by the calendar
// agent. The unset→processed transition is one-way.
const StatusProcessed = "processed"

// Record is a stored memory with its embedding.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Memory    string    `json:"memory"`     // original display text
	EmbedText string    `json:"embed_text"` // text that was embedded
	Status    string    `json:"status,omitempty"`
	CreatedAt string    `json:"created_at"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// SearchHit is a single similarity search result.
type SearchHit struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Score  float64 `json:"score"`
}

// Embedder produces an embedding vector for text, or an empty vector
// when the embedding service is unavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}
