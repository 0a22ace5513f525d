package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("got %+v, want defaults %+v", cfg, Default())
	}
}

func TestLoadOverridesPartially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binsight.yaml")
	body := "analysis:\n  workers: 2\n  overlap_incoming_wins: true\nscroll:\n  evict_distance: 64\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Workers != 2 || !cfg.Analysis.IncomingWins {
		t.Errorf("analysis overrides not applied: %+v", cfg.Analysis)
	}
	if cfg.Scroll.EvictDistance != 64 {
		t.Errorf("scroll override not applied: %+v", cfg.Scroll)
	}
	// Keys the file omits keep their defaults.
	if cfg.Analysis.InvalidRunLimit != Default().Analysis.InvalidRunLimit {
		t.Errorf("invalid run limit = %d, want default %d",
			cfg.Analysis.InvalidRunLimit, Default().Analysis.InvalidRunLimit)
	}
	if cfg.Scroll.CheckpointInterval != Default().Scroll.CheckpointInterval {
		t.Errorf("checkpoint interval = %d, want default %d",
			cfg.Scroll.CheckpointInterval, Default().Scroll.CheckpointInterval)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("analysis: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed yaml")
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Analysis.Workers = 7
	cfg.Analysis.SeedIndirect = true

	p := cfg.Policy()
	if p.Workers != 7 || !p.SeedIndirect {
		t.Errorf("Policy() = %+v", p)
	}
	s := cfg.ScrollConfig()
	if s.CheckpointInterval != cfg.Scroll.CheckpointInterval || s.EvictDistance != cfg.Scroll.EvictDistance {
		t.Errorf("ScrollConfig() = %+v", s)
	}
}
