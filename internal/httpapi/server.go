// Package httpapi exposes ingestion, chat, search and agent control
// over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/engram-os/engram-os/internal/agents"
	"github.com/engram-os/engram-os/internal/chat"
	"github.com/engram-os/engram-os/internal/memory"
	"github.com/engram-os/engram-os/internal/scheduler"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	version            = "0.3.0"
)

// Server handles the HTTP surface for one user identity.
type Server struct {
	userID    string
	memories  *memory.Service
	chat      *chat.Service
	activity  *agents.ActivityLog
	sched     *scheduler.Service
	authToken string
	limiter   *RateLimiter

	httpSrv *http.Server
}

// Config carries the wiring for a Server.
type Config struct {
	Addr      string
	UserID    string
	AuthToken string
	RPM       int

	Memories *memory.Service
	Chat     *chat.Service
	Activity *agents.ActivityLog
	Sched    *scheduler.Service
}

func NewServer(cfg Config) *Server {
	s := &Server{
		userID:    cfg.UserID,
		memories:  cfg.Memories,
		chat:      cfg.Chat,
		activity:  cfg.Activity,
		sched:     cfg.Sched,
		authToken: cfg.AuthToken,
		limiter:   NewRateLimiter(cfg.RPM, 10),
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the routing table. Exposed separately so tests can
// drive the mux without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /run-agents/{agent}", s.handleRunAgent)
	mux.HandleFunc("GET /activity", s.handleActivity)
	return s.withMiddleware(mux)
}

// ListenAndServe blocks until the context is cancelled, then shuts
// the server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			return
		}
		if !s.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		next.ServeHTTP(w, r)
	})
}

// authorized checks the bearer token in constant time. An empty
// configured token disables auth.
func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	provided, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.authToken)) == 1
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "Engram OS is online",
		"version":  version,
		"memories": s.memories.Count(r.Context(), s.userID),
		"jobs":     s.sched.Status(),
	})
}

type ingestRequest struct {
	Text      string `json:"text"`
	EmbedText string `json:"embed_text,omitempty"`
	Type      string `json:"type,omitempty"`
}

// handleIngest stores one memory. Any user_id in the request body is
// ignored: ingestion is always scoped to the server's own identity,
// so one installation cannot write into another user's namespace.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	res, err := s.memories.Ingest(r.Context(), s.userID, req.Text, req.EmbedText, req.Type)
	if err != nil {
		if errors.Is(err, memory.ErrEmbeddingUnavailable) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "embedding service unavailable"})
			return
		}
		slog.Error("ingest failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingestion failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type chatRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	// Backend failures come back as structured replies, never 5xx.
	reply := s.chat.Chat(r.Context(), s.userID, req.Text)
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	limit := queryInt(r, "limit", 10)

	hits, err := s.memories.Search(r.Context(), s.userID, query, limit, 0)
	if err != nil {
		slog.Error("search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}
	if hits == nil {
		hits = []memory.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("agent")
	if !s.sched.Trigger(context.WithoutCancel(r.Context()), name) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown agent: " + name})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "agent": name})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	entries, err := s.activity.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("activity query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "activity unavailable"})
		return
	}
	if entries == nil {
		entries = []agents.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}
