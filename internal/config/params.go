package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// tunables maps a parameter name to a setter on a config. Integer
// parameters round the value.
var tunables = map[string]func(c *Config, v float64){
	"dt":                    func(c *Config, v float64) { c.Dt = v },
	"count":                 func(c *Config, v float64) { c.Params.Count = int(math.Round(v)) },
	"size":                  func(c *Config, v float64) { c.Params.Size = v },
	"height":                func(c *Config, v float64) { c.Params.Height = v },
	"damping":               func(c *Config, v float64) { c.Params.Damping = v },
	"velocity_iterations":   func(c *Config, v float64) { c.World.VelocityIterations = int(math.Round(v)) },
	"position_iterations":   func(c *Config, v float64) { c.World.PositionIterations = int(math.Round(v)) },
	"baumgarte":             func(c *Config, v float64) { c.World.Baumgarte = v },
	"warm_start_factor":     func(c *Config, v float64) { c.World.WarmStartFactor = v },
	"friction":              func(c *Config, v float64) { c.World.DefaultFriction = v },
	"restitution":           func(c *Config, v float64) { c.World.DefaultRestitution = v },
	"restitution_threshold": func(c *Config, v float64) { c.World.RestitutionThreshold = v },
	"time_to_sleep":         func(c *Config, v float64) { c.World.TimeToSleep = v },
	"aabb_margin":           func(c *Config, v float64) { c.World.AABBMargin = v },
}

// SetParam sets one tunable parameter by name.
func SetParam(c *Config, name string, v float64) error {
	set, ok := tunables[name]
	if !ok {
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidConfig, name)
	}
	set(c, v)
	return nil
}

// TunableParams returns the parameter names SetParam accepts, sorted.
func TunableParams() []string {
	names := make([]string, 0, len(tunables))
	for name := range tunables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseRange reads "name=v1,v2,..." or "name=from:to:step" into a
// parameter name and its values.
func ParseRange(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("%w: range %q is not name=values", ErrInvalidConfig, s)
	}
	if _, known := tunables[name]; !known {
		return "", nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidConfig, name)
	}

	if parts := strings.Split(list, ":"); len(parts) == 3 {
		var bounds [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return "", nil, fmt.Errorf("%w: range %q: %v", ErrInvalidConfig, s, err)
			}
			bounds[i] = v
		}
		from, to, step := bounds[0], bounds[1], bounds[2]
		if step <= 0 || to < from {
			return "", nil, fmt.Errorf("%w: range %q needs from <= to and a positive step", ErrInvalidConfig, s)
		}
		var values []float64
		for i := 0; ; i++ {
			v := from + float64(i)*step
			if v > to+step*1e-9 {
				break
			}
			values = append(values, v)
		}
		return name, values, nil
	}

	var values []float64
	for _, p := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: range %q: %v", ErrInvalidConfig, s, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}
