// Package llm is the gateway to the local language model service
// (an Ollama-compatible HTTP API) for chat completions and text
// embeddings. All calls are blocking with bounded timeouts; embedding
// failures are converted into an empty vector rather than an error so
// callers can degrade gracefully.
package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultHost       = "http://localhost:11434"
	defaultChatModel  = "llama3.1:latest"
	defaultEmbedModel = "nomic-embed-text:latest"

	embedTimeout = 30 * time.Second
	chatTimeout  = 60 * time.Second

	embedCacheSize = 2048
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a non-streaming chat completion request.
type ChatRequest struct {
	Messages []Message
	// JSONMode instructs the model to emit a JSON object. The output
	// still has to be parsed defensively; models wrap JSON in prose.
	JSONMode bool
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content string
}

// Config holds gateway settings.
type Config struct {
	Host       string // base URL of the model service
	ChatModel  string
	EmbedModel string
}

// Client talks to the model service over HTTP.
type Client struct {
	host       string
	chatModel  string
	embedModel string
	http       *http.Client
	embedCache *lru.Cache[string, []float32]
}

// New creates a gateway client. Zero-value config fields fall back to
// local defaults.
func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultEmbedModel
	}
	cache, _ := lru.New[string, []float32](embedCacheSize)
	return &Client{
		host:       cfg.Host,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		http:       &http.Client{},
		embedCache: cache,
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text, or nil on any failure
// (timeout, unreachable service, malformed response). It never returns
// an error: callers treat an empty vector as "cannot proceed with
// vector operations".
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	key := cacheKey(c.embedModel, text)
	if vec, ok := c.embedCache.Get(key); ok {
		return vec
	}

	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	var resp embedResponse
	err := c.postJSON(ctx, "/api/embeddings", embedRequest{Model: c.embedModel, Prompt: text}, &resp)
	if err != nil {
		slog.Error("embedding failed", "error", err)
		return nil
	}
	if len(resp.Embedding) == 0 {
		slog.Error("embedding service returned empty vector")
		return nil
	}

	c.embedCache.Add(key, resp.Embedding)
	return resp.Embedding
}

type chatAPIRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Format   string    `json:"format,omitempty"`
	Stream   bool      `json:"stream"`
}

type chatAPIResponse struct {
	Message Message `json:"message"`
}

// Chat sends a non-streaming chat completion request.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	apiReq := chatAPIRequest{
		Model:    c.chatModel,
		Messages: req.Messages,
		Stream:   false,
	}
	if req.JSONMode {
		apiReq.Format = "json"
	}

	var resp chatAPIResponse
	if err := c.postJSON(ctx, "/api/chat", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return &ChatResponse{Content: resp.Message.Content}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return fmt.Sprintf("%x", h[:16])
}
