package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestEmbed_ReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL})
	vec := c.Embed(context.Background(), "hello")
	if len(vec) != 3 {
		t.Fatalf("embedding length = %d, want 3", len(vec))
	}
}

func TestEmbed_FailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL})
	if vec := c.Embed(context.Background(), "hello"); vec != nil {
		t.Errorf("expected nil vector on failure, got %v", vec)
	}
}

func TestEmbed_CachesByContent(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1}})
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL})
	c.Embed(context.Background(), "same text")
	c.Embed(context.Background(), "same text")

	if got := calls.Load(); got != 1 {
		t.Errorf("embedding service called %d times, want 1 (cached)", got)
	}
}

func TestChat_ReturnsModelReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["format"] != "json" {
			t.Errorf("format = %v, want json", req["format"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"action":"none"}`},
		})
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL})
	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"action":"none"}` {
		t.Errorf("content = %q", resp.Content)
	}
}
