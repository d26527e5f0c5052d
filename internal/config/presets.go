package config

import "sort"

// Presets holds named adjustments per scene, applied over DefaultConfig.
var Presets = map[string]map[string]func(*Config){
	"drop": {
		"few": func(c *Config) {
			c.Params.Count = 5
			c.Duration = 4
		},
		"many": func(c *Config) {
			c.Params.Count = 60
			c.Params.Height = 8
			c.Duration = 8
		},
		"bouncy": func(c *Config) {
			c.Params.Count = 10
			c.World.DefaultRestitution = 0.6
		},
	},
	"stack": {
		"tall": func(c *Config) {
			c.Params.Count = 12
			c.Duration = 10
		},
		"cold": func(c *Config) {
			c.Params.Count = 8
			c.World.WarmStarting = false
		},
	},
	"pyramid": {
		"small": func(c *Config) {
			c.Params.Count = 4
		},
		"large": func(c *Config) {
			c.Params.Count = 20
			c.Duration = 10
		},
		"previous-friction": func(c *Config) {
			c.Params.Count = 10
			c.World.FrictionFromPreviousStep = true
		},
	},
	"dominoes": {
		"row": func(c *Config) {
			c.Params.Count = 20
			c.Duration = 8
		},
		"long": func(c *Config) {
			c.Params.Count = 60
			c.Duration = 15
		},
	},
	"terrain": {
		"rain": func(c *Config) {
			c.Params.Count = 30
			c.Params.Height = 6
			c.Duration = 8
		},
	},
	"rope": {
		"default": func(c *Config) {
			c.Dt = 1.0 / 120
			c.Duration = 10
			c.Params.Ropes = 2
			c.Params.Links = 10
			c.Params.Damping = 0.03
			c.Params.Torque = 0.5
			c.Params.TorqueSteps = 200
		},
		"long": func(c *Config) {
			c.Dt = 1.0 / 120
			c.Duration = 10
			c.Params.Ropes = 1
			c.Params.Links = 50
			c.Params.Damping = 0.03
		},
	},
	"hover": {
		"heavy": func(c *Config) {
			c.Params.Count = 9
			c.Params.Size = 0.3
			c.Duration = 8
		},
	},
	"trigger": {
		"rain": func(c *Config) {
			c.Params.Count = 12
			c.Duration = 6
		},
	},
	"mixed": {
		"default": func(c *Config) {
			c.Duration = 6
		},
		"serial": func(c *Config) {
			c.World.Workers = 1
		},
	},
}

// GetPreset returns a fresh config for scene with the named preset applied,
// or nil when either is unknown.
func GetPreset(scene, preset string) *Config {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	apply, ok := scenePresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Scene = scene
	apply(cfg)
	return cfg
}

// ListPresets returns the preset names of a scene in sorted order.
func ListPresets(scene string) []string {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenePresets))
	for name := range scenePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetScenes returns the scenes that have presets, sorted.
func PresetScenes() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
