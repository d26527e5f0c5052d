package config

import (
	"errors"
	"testing"
)

func TestSetParam(t *testing.T) {
	cfg := DefaultConfig()
	if err := SetParam(cfg, "velocity_iterations", 11.6); err != nil {
		t.Fatal(err)
	}
	if cfg.World.VelocityIterations != 12 {
		t.Errorf("expected 12 iterations, got %d", cfg.World.VelocityIterations)
	}
	if err := SetParam(cfg, "friction", 0.25); err != nil || cfg.World.DefaultFriction != 0.25 {
		t.Errorf("friction not set: %v", err)
	}
	if err := SetParam(cfg, "warp", 1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want []float64
	}{
		{"friction=0.2,0.4, 0.8", []float64{0.2, 0.4, 0.8}},
		{"velocity_iterations=4:12:4", []float64{4, 8, 12}},
		{"count=1:1:1", []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, got, err := ParseRange(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestParseRangeErrors(t *testing.T) {
	for _, in := range []string{"friction", "=1", "warp=1", "friction=a,b", "count=4:1:1", "count=1:4:0"} {
		if _, _, err := ParseRange(in); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%q: expected ErrInvalidConfig, got %v", in, err)
		}
	}
}

func TestTunableParamsSorted(t *testing.T) {
	names := TunableParams()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("not sorted: %v", names)
		}
	}
}
