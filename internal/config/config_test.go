package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Memory.MinBelief != 0.5 {
		t.Errorf("default min_belief = %v", cfg.Memory.MinBelief)
	}
	if cfg.Memory.HaloBands != 3 {
		t.Errorf("default halo_bands = %v", cfg.Memory.HaloBands)
	}
	if cfg.Learning.RetireSecs != 30.0 {
		t.Errorf("default retire_secs = %v", cfg.Learning.RetireSecs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if cfg.Name != "noesis" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Memory.MinBelief = 0.7
	cfg.KB.Dir = "knowledge"
	cfg.Learning.ConfDec = 0.2
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Memory.MinBelief != 0.7 || got.KB.Dir != "knowledge" || got.Learning.ConfDec != 0.2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestValidateRejectsBadBelief(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.MinBelief = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for min_belief 1.5")
	}
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("NOESIS_MIN_BELIEF", "0.8")
	defer os.Unsetenv("NOESIS_MIN_BELIEF")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Memory.MinBelief != 0.8 {
		t.Errorf("env override ignored: %v", cfg.Memory.MinBelief)
	}
}
