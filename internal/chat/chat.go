// Package chat implements retrieval-augmented chat: user questions are
// answered by the language model strictly from the caller's stored
// memories, with the retrieved context returned for auditability.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/engram-os/engram-os/internal/llm"
	"github.com/engram-os/engram-os/internal/memory"
)

const (
	// maxContextChars bounds the prompt: lowest-ranked memories are
	// dropped first, never the leading ones.
	maxContextChars = 4000

	retrievalLimit    = 5
	retrievalMinScore = 0.45

	replyEmbeddingError = "Embedding Error"
	replyDatabaseError  = "Database Error"
)

const contextSystemPrompt = `You are a helpful Personal OS with access to the user's stored memories.
Answer the user's question using ONLY the memories provided below.
If the memories don't contain enough information to answer, say "I don't have enough context stored about that yet."
Do not invent, infer, or add information beyond what is in the memories.

Stored memories:
`

const noContextSystemPrompt = `You are a helpful Personal OS.
You have no stored memories relevant to this question.
Respond with: "I don't have anything stored about that yet."
Do not make up or infer any information.`

// Source is one retrieved memory used as context.
type Source struct {
	Memory string  `json:"memory"`
	Score  float64 `json:"score"`
}

// Reply is the chat result. Reply is the model output verbatim;
// ContextUsed lists the memories the model was shown.
type Reply struct {
	Reply       string   `json:"reply"`
	ContextUsed []Source `json:"context_used"`
}

// VectorIndex is the similarity search surface of the memory store.
type VectorIndex interface {
	SearchByVector(ctx context.Context, userID string, vec []float32, limit int, minScore float64) ([]memory.SearchHit, error)
}

// Chatter sends a completion request to the language model.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Service answers questions from stored memories. The memories-only
// guarantee is a prompt-level contract, not mechanically enforced:
// the model is instructed to refuse anything outside the supplied
// context, and that instruction is best-effort.
type Service struct {
	embedder memory.Embedder
	index    VectorIndex
	model    Chatter
}

// New wires the chat pipeline.
func New(embedder memory.Embedder, index VectorIndex, model Chatter) *Service {
	return &Service{embedder: embedder, index: index, model: model}
}

// Chat retrieves the user's most relevant memories and asks the model
// to answer from them. External-service failures come back as typed
// replies, never as panics or raw errors to the HTTP layer.
func (s *Service) Chat(ctx context.Context, userID, question string) Reply {
	vec := s.embedder.Embed(ctx, question)
	if len(vec) == 0 {
		return Reply{Reply: replyEmbeddingError, ContextUsed: []Source{}}
	}

	hits, err := s.index.SearchByVector(ctx, userID, vec, retrievalLimit, retrievalMinScore)
	if err != nil {
		slog.Error("memory search failed", "error", err)
		return Reply{Reply: replyDatabaseError, ContextUsed: []Source{}}
	}

	sources := make([]Source, 0, len(hits))
	var lines []string
	for _, hit := range hits {
		text := hit.Memory
		if text == "" {
			text = "Unknown info"
		}
		lines = append(lines, "- "+text)
		sources = append(sources, Source{Memory: text, Score: roundScore(hit.Score)})
	}

	contextStr := truncate(strings.Join(lines, "\n"), maxContextChars)

	systemPrompt := noContextSystemPrompt
	if strings.TrimSpace(contextStr) != "" {
		systemPrompt = contextSystemPrompt + contextStr
	}

	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		slog.Error("chat completion failed", "error", err)
		return Reply{Reply: fmt.Sprintf("Generation Error: %v", err), ContextUsed: sources}
	}

	return Reply{Reply: resp.Content, ContextUsed: sources}
}

func roundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}

// truncate caps s at max bytes without splitting a multi-byte rune at
// the boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
