package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8000" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Fatalf("ollama host = %q", cfg.Ollama.Host)
	}
	if cfg.Agents.CalendarInterval.Std() != 15*time.Minute {
		t.Fatalf("calendar interval = %v", cfg.Agents.CalendarInterval)
	}
	if cfg.Agents.EmailBatchSize != 5 {
		t.Fatalf("email batch = %d", cfg.Agents.EmailBatchSize)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  addr: ":9090"
agents:
  email_interval: 30m
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Agents.EmailInterval.Std() != 30*time.Minute {
		t.Fatalf("email interval = %v", cfg.Agents.EmailInterval)
	}
	// Untouched sections keep their defaults.
	if cfg.Ollama.ChatModel != "llama3.1:latest" {
		t.Fatalf("chat model = %q", cfg.Ollama.ChatModel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("ENGRAM_AUTH_TOKEN", "tok")
	t.Setenv("ENGRAM_DATA_DIR", "/var/lib/engram")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ollama.Host != "http://gpu-box:11434" {
		t.Fatalf("ollama host = %q", cfg.Ollama.Host)
	}
	if cfg.HTTP.AuthToken != "tok" {
		t.Fatalf("auth token = %q", cfg.HTTP.AuthToken)
	}
	if cfg.MemoryDBPath() != "/var/lib/engram/memories.db" {
		t.Fatalf("memory db path = %q", cfg.MemoryDBPath())
	}
}

func TestInvalidYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML must fail loudly")
	}
}
