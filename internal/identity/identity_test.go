package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGet_ConsistentAcrossCalls(t *testing.T) {
	t.Setenv(EnvUserID, "")
	os.Unsetenv(EnvUserID)

	path := filepath.Join(t.TempDir(), "identity.json")
	p := NewProvider(path)

	first, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := p.Get()
	if err != nil {
		t.Fatalf("Get (second): %v", err)
	}

	if first.UserID == "" {
		t.Fatal("empty user id")
	}
	if first.UserID != second.UserID {
		t.Errorf("user id changed between calls: %q != %q", first.UserID, second.UserID)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("identity file not persisted: %v", err)
	}
}

func TestGet_EnvOverrideSkipsFilesystem(t *testing.T) {
	t.Setenv(EnvUserID, "fixed-test-user-env")

	path := filepath.Join(t.TempDir(), "identity.json")
	p := NewProvider(path)

	id, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if id.UserID != "fixed-test-user-env" {
		t.Errorf("user id = %q, want env override", id.UserID)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("identity file written despite env override")
	}
}

func TestGet_FilePermissions(t *testing.T) {
	t.Setenv(EnvUserID, "")
	os.Unsetenv(EnvUserID)

	path := filepath.Join(t.TempDir(), "identity.json")
	if _, err := NewProvider(path).Get(); err != nil {
		t.Fatalf("Get: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("identity file mode = %o, want 600", perm)
	}
}
