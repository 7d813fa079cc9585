package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupDebugWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	dir := filepath.Join(ws, ".noesis")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := `{"logging": {"debug_mode": true, "level": "debug"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return ws
}

func TestInitializeNoConfig(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsDebugMode() {
		t.Error("debug mode should default to off without config")
	}
	// Logging in production mode must be a silent no-op.
	Kernel("should not appear anywhere")
	if _, err := os.Stat(filepath.Join(ws, ".noesis", "logs")); !os.IsNotExist(err) {
		t.Error("logs dir should not be created in production mode")
	}
}

func TestCategoryFileWritten(t *testing.T) {
	ws := setupDebugWorkspace(t)
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	Halo("refresh complete: %d invocations", 7)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".noesis", "logs"))
	if err != nil {
		t.Fatalf("logs dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_halo.log") {
			data, _ := os.ReadFile(filepath.Join(ws, ".noesis", "logs", e.Name()))
			if !strings.Contains(string(data), "refresh complete: 7 invocations") {
				t.Errorf("halo log missing message: %s", data)
			}
			found = true
		}
	}
	if !found {
		t.Error("no halo log file written")
	}
}

func TestCategoryGate(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".noesis")
	os.MkdirAll(dir, 0755)
	cfg := `{"logging": {"debug_mode": true, "level": "debug", "categories": {"attn": false}}}`
	os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644)
	if err := Initialize(ws); err != nil {
		t.Fatal(err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryAttn) {
		t.Error("attn should be disabled")
	}
	if !IsCategoryEnabled(CategoryWmem) {
		t.Error("wmem should be enabled by default")
	}
}
