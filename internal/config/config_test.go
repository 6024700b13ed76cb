package config

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Hop() != 735 {
		t.Fatalf("expected 735 samples per frame, got %d", cfg.Hop())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"sample rate": func(c *Config) { c.SampleRate = 4000 },
		"buffer size": func(c *Config) { c.BufferSize = 1000 },
		"small buf":   func(c *Config) { c.BufferSize = 128 },
		"channels":    func(c *Config) { c.Channels = 0 },
		"fps":         func(c *Config) { c.FPS = 0 },
		"backend":     func(c *Config) { c.Backend = "alsa" },
		"detector":    func(c *Config) { c.Detector = "yin" },
		"look-ahead":  func(c *Config) { c.LookAhead = 0 },
		"offset step": func(c *Config) { c.OffsetStep = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
	}
}

func TestBindFlags(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	args := strings.Fields("--backend synth --fps 30 --offset-step 0.25 --lane-height 300 --melody-url http://localhost:3000")
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendSynth || cfg.FPS != 30 || cfg.MelodyURL != "http://localhost:3000" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	opts := cfg.LaneOptions()
	if opts.OffsetStep != 0.25 || opts.Height != 300 || opts.LookAhead != 6 {
		t.Fatalf("unexpected lane options: %+v", opts)
	}
	if opts.MelodyNowX != 0.15 || opts.MinHeight != 120 {
		t.Fatalf("expected layout defaults kept: %+v", opts)
	}
}
