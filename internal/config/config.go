// Package config loads the analysis policy file. Flags override the
// file; the file overrides the defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"binsight/internal/processor"
	"binsight/internal/scroll"
)

// Analysis holds the orchestrator's policy knobs.
type Analysis struct {
	Workers         int  `yaml:"workers" json:"workers" jsonschema:"title=Workers,description=Size of the sweep worker pool"`
	InvalidRunLimit int  `yaml:"invalid_run_limit" json:"invalidRunLimit" jsonschema:"title=Invalid Run Limit,description=Consecutive undecodable entries before a sweep is abandoned"`
	SeedIndirect    bool `yaml:"seed_indirect" json:"seedIndirect" jsonschema:"title=Seed Indirect,description=Also seed statically known targets of indirect flow"`
	IncomingWins    bool `yaml:"overlap_incoming_wins" json:"overlapIncomingWins" jsonschema:"title=Overlap Incoming Wins,description=Let a later sweep overwrite previously confirmed instruction boundaries"`
}

// Scroll holds the viewer buffer's memory/recompute trade.
type Scroll struct {
	CheckpointInterval int `yaml:"checkpoint_interval" json:"checkpointInterval" jsonschema:"title=Checkpoint Interval,description=Stream entries between row-index checkpoints"`
	EvictDistance      int `yaml:"evict_distance" json:"evictDistance" jsonschema:"title=Evict Distance,description=Rows from the anchor a materialized row survives"`
}

// Config is the whole policy file.
type Config struct {
	Analysis Analysis `yaml:"analysis" json:"analysis"`
	Scroll   Scroll   `yaml:"scroll" json:"scroll"`
}

func Default() Config {
	p := processor.DefaultPolicy()
	s := scroll.DefaultConfig()
	return Config{
		Analysis: Analysis{
			Workers:         p.Workers,
			InvalidRunLimit: p.InvalidRunLimit,
			SeedIndirect:    p.SeedIndirect,
			IncomingWins:    p.IncomingWins,
		},
		Scroll: Scroll{
			CheckpointInterval: s.CheckpointInterval,
			EvictDistance:      s.EvictDistance,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error;
// the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Policy converts to the processor's policy type.
func (c Config) Policy() processor.Policy {
	return processor.Policy{
		Workers:         c.Analysis.Workers,
		InvalidRunLimit: c.Analysis.InvalidRunLimit,
		SeedIndirect:    c.Analysis.SeedIndirect,
		IncomingWins:    c.Analysis.IncomingWins,
	}
}

// ScrollConfig converts to the scroll buffer's config type.
func (c Config) ScrollConfig() scroll.Config {
	return scroll.Config{
		CheckpointInterval: c.Scroll.CheckpointInterval,
		EvictDistance:      c.Scroll.EvictDistance,
	}
}
