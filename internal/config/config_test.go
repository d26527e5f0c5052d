package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/san-kum/rigidsim/internal/world"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scene != "pyramid" {
		t.Errorf("expected scene pyramid, got %s", cfg.Scene)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.Steps() != 300 {
		t.Errorf("expected 300 steps, got %d", cfg.Steps())
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("rope", "default")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Scene != "rope" {
		t.Errorf("expected scene rope, got %s", cfg.Scene)
	}
	if cfg.Dt != 1.0/120 {
		t.Errorf("expected dt 1/120, got %f", cfg.Dt)
	}
	if cfg.Params.TorqueSteps != 200 {
		t.Errorf("expected 200 torque steps, got %d", cfg.Params.TorqueSteps)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("pyramid", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "small")
	if cfg != nil {
		t.Error("expected nil for nonexistent scene")
	}
}

func TestPresetsAreIndependent(t *testing.T) {
	a := GetPreset("pyramid", "large")
	a.Params.Count = 99
	b := GetPreset("pyramid", "large")
	if b.Params.Count != 20 {
		t.Errorf("preset leaked a previous mutation: count %d", b.Params.Count)
	}
}

func TestAllPresetsValidate(t *testing.T) {
	for _, scene := range PresetScenes() {
		for _, name := range ListPresets(scene) {
			if err := GetPreset(scene, name).Validate(); err != nil {
				t.Errorf("%s/%s: %v", scene, name, err)
			}
		}
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("pyramid")
	if len(presets) != 3 {
		t.Errorf("expected 3 presets for pyramid, got %v", presets)
	}
	if presets[0] != "large" {
		t.Errorf("expected sorted names, got %v", presets)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent scene")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty scene", func(c *Config) { c.Scene = "" }},
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"zero sample interval", func(c *Config) { c.SampleEvery = 0 }},
		{"bad world", func(c *Config) { c.World.VelocityIterations = 0 }},
		{"unnamed body", func(c *Config) { c.Bodies = []BodyConfig{{Type: "dynamic"}} }},
		{"duplicate body", func(c *Config) {
			c.Bodies = []BodyConfig{{Name: "a"}, {Name: "a"}}
		}},
		{"unknown body type", func(c *Config) { c.Bodies = []BodyConfig{{Name: "a", Type: "ghost"}} }},
		{"unknown shape", func(c *Config) {
			c.Bodies = []BodyConfig{{Name: "a", Colliders: []ColliderConfig{{Shape: ShapeConfig{Type: "torus"}}}}}
		}},
		{"unknown joint body", func(c *Config) {
			c.Bodies = []BodyConfig{{Name: "a"}}
			c.Joints = []JointConfig{{Type: "fixed", BodyA: "a", BodyB: "b"}}
		}},
		{"unknown joint type", func(c *Config) {
			c.Bodies = []BodyConfig{{Name: "a"}, {Name: "b"}}
			c.Joints = []JointConfig{{Type: "hinge", BodyA: "a", BodyB: "b"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateWrapsWorldError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World.Workers = 0
	if err := cfg.Validate(); !errors.Is(err, world.ErrInvalidSettings) {
		t.Errorf("expected world.ErrInvalidSettings in chain, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	cfg := GetPreset("rope", "default")
	cfg.Bodies = []BodyConfig{{
		Name:     "ball",
		Type:     "dynamic",
		Position: [3]float64{0, 2, 0},
		Colliders: []ColliderConfig{{
			Shape: ShapeConfig{Type: "sphere", Radius: 0.5},
		}},
	}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Scene != "rope" || got.Params.Links != 10 || got.World.Gravity != cfg.World.Gravity {
		t.Errorf("round trip changed the config: %+v", got)
	}
	if len(got.Bodies) != 1 || got.Bodies[0].Colliders[0].Shape.Radius != 0.5 {
		t.Errorf("bodies not preserved: %+v", got.Bodies)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	cfg := DefaultConfig()
	cfg.Dt = -1
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
