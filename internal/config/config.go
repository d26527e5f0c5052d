package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/world"
)

const (
	DefaultScene       = "pyramid"
	DefaultDt          = 1.0 / 60
	DefaultDuration    = 5.0
	DefaultSampleEvery = 1
	DefaultCount       = 5
	DefaultSize        = 0.5
	DefaultHeight      = 4.0
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Scene       string         `yaml:"scene"`
	Dt          float64        `yaml:"dt"`
	Duration    float64        `yaml:"duration"`
	Seed        int64          `yaml:"seed"`
	SampleEvery int            `yaml:"sample_every"`
	World       world.Settings `yaml:"world"`
	Params      SceneParams    `yaml:"params"`
	Bodies      []BodyConfig   `yaml:"bodies,omitempty"`
	Joints      []JointConfig  `yaml:"joints,omitempty"`
}

// SceneParams tunes the named scenes. Each scene reads the fields it needs
// and falls back to its own default for zero values.
type SceneParams struct {
	Count       int     `yaml:"count"`
	Size        float64 `yaml:"size"`
	Height      float64 `yaml:"height"`
	Ropes       int     `yaml:"ropes"`
	Links       int     `yaml:"links"`
	Damping     float64 `yaml:"damping"`
	Torque      float64 `yaml:"torque"`
	TorqueSteps int     `yaml:"torque_steps"`
}

type ShapeConfig struct {
	Type        string       `yaml:"type"`
	Radius      float64      `yaml:"radius,omitempty"`
	HalfHeight  float64      `yaml:"half_height,omitempty"`
	HalfExtents [3]float64   `yaml:"half_extents,omitempty"`
	Points      [][3]float64 `yaml:"points,omitempty"`
	Indices     [][3]int     `yaml:"indices,omitempty"`
	Heights     [][]float64  `yaml:"heights,omitempty"`
	CellSize    float64      `yaml:"cell_size,omitempty"`
}

type ColliderConfig struct {
	Shape       ShapeConfig `yaml:"shape"`
	Offset      [3]float64  `yaml:"offset,omitempty"`
	Friction    float64     `yaml:"friction,omitempty"`
	Restitution float64     `yaml:"restitution,omitempty"`
	Density     float64     `yaml:"density,omitempty"`
	Trigger     bool        `yaml:"trigger,omitempty"`
}

type BodyConfig struct {
	Name            string           `yaml:"name"`
	Type            string           `yaml:"type"`
	Position        [3]float64       `yaml:"position"`
	Rotation        [3]float64       `yaml:"rotation,omitempty"` // XYZ euler angles in degrees
	LinearVelocity  [3]float64       `yaml:"linear_velocity,omitempty"`
	AngularVelocity [3]float64       `yaml:"angular_velocity,omitempty"`
	LinearDamping   float64          `yaml:"linear_damping,omitempty"`
	AngularDamping  float64          `yaml:"angular_damping,omitempty"`
	GravityScale    *float64         `yaml:"gravity_scale,omitempty"`
	Colliders       []ColliderConfig `yaml:"colliders"`
}

type JointConfig struct {
	Type             string     `yaml:"type"`
	BodyA            string     `yaml:"body_a"`
	BodyB            string     `yaml:"body_b"`
	Anchor           [3]float64 `yaml:"anchor"`
	AnchorB          [3]float64 `yaml:"anchor_b,omitempty"`
	MinLength        float64    `yaml:"min_length,omitempty"`
	MaxLength        float64    `yaml:"max_length,omitempty"`
	CollideConnected bool       `yaml:"collide_connected,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:       DefaultScene,
		Dt:          DefaultDt,
		Duration:    DefaultDuration,
		SampleEvery: DefaultSampleEvery,
		World:       world.DefaultSettings(),
		Params: SceneParams{
			Count:  DefaultCount,
			Size:   DefaultSize,
			Height: DefaultHeight,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Steps is the number of fixed steps covering Duration.
func (c *Config) Steps() int {
	return int(math.Round(c.Duration / c.Dt))
}

func (c *Config) Validate() error {
	if c.Scene == "" {
		return fmt.Errorf("%w: scene is required", ErrInvalidConfig)
	}
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, c.Dt)
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalidConfig, c.Duration)
	}
	if c.SampleEvery < 1 {
		return fmt.Errorf("%w: sample_every must be at least 1, got %d", ErrInvalidConfig, c.SampleEvery)
	}
	if err := c.World.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	names := make(map[string]bool, len(c.Bodies))
	for i, b := range c.Bodies {
		if b.Name == "" {
			return fmt.Errorf("%w: body %d has no name", ErrInvalidConfig, i)
		}
		if names[b.Name] {
			return fmt.Errorf("%w: duplicate body %q", ErrInvalidConfig, b.Name)
		}
		names[b.Name] = true
		if _, err := dynamics.ParseBodyType(b.Type); err != nil {
			return fmt.Errorf("%w: body %q: %w", ErrInvalidConfig, b.Name, err)
		}
		for j, col := range b.Colliders {
			if !knownShape(col.Shape.Type) {
				return fmt.Errorf("%w: body %q collider %d: unknown shape %q", ErrInvalidConfig, b.Name, j, col.Shape.Type)
			}
		}
	}
	for i, j := range c.Joints {
		if _, err := dynamics.ParseJointType(j.Type); err != nil {
			return fmt.Errorf("%w: joint %d: %w", ErrInvalidConfig, i, err)
		}
		if !names[j.BodyA] || !names[j.BodyB] {
			return fmt.Errorf("%w: joint %d connects unknown bodies %q and %q", ErrInvalidConfig, i, j.BodyA, j.BodyB)
		}
	}
	return nil
}

// ShapeTypes lists the shape names accepted in body colliders.
var ShapeTypes = []string{"sphere", "box", "capsule", "hull", "mesh", "heightfield"}

func knownShape(name string) bool {
	for _, s := range ShapeTypes {
		if s == name {
			return true
		}
	}
	return false
}
