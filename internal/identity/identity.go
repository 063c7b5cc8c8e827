// Package identity resolves the stable local user identifier that
// namespaces every stored memory. The identifier is resolved from the
// ENGRAM_USER_ID environment variable, then from a persisted identity
// file, and is otherwise generated and written with owner-only
// permissions.
package identity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// EnvUserID overrides all file-based resolution when set.
const EnvUserID = "ENGRAM_USER_ID"

// Identity is the persisted local identity record.
type Identity struct {
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at,omitempty"`
	Machine   string `json:"machine,omitempty"`
}

// Provider resolves and persists the local identity.
type Provider struct {
	path string
}

// NewProvider creates a provider backed by the given identity file path.
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// Get returns the local identity. Safe to call repeatedly and from
// concurrent processes: if two processes race to create the file, both
// end up with a valid identity and the last writer wins.
func (p *Provider) Get() (Identity, error) {
	if envID := os.Getenv(EnvUserID); envID != "" {
		return Identity{UserID: envID}, nil
	}

	if data, err := os.ReadFile(p.path); err == nil {
		var id Identity
		if err := json.Unmarshal(data, &id); err == nil && id.UserID != "" {
			return id, nil
		}
		slog.Warn("identity file unreadable, regenerating", "path", p.path)
	}

	host, _ := os.Hostname()
	id := Identity{
		UserID:    uuid.NewString(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Machine:   host,
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return Identity{}, fmt.Errorf("create identity dir: %w", err)
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return Identity{}, fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return Identity{}, fmt.Errorf("write identity file: %w", err)
	}

	slog.Info("local identity created", "path", p.path, "machine", host)
	return id, nil
}
