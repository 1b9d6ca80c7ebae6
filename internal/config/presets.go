package config

import (
	"sort"
	"time"
)

// Presets tweak DefaultConfig for a particular playing style.
var Presets = map[string]func(*Config){
	"drone": func(c *Config) {
		c.Engine.Kind = "additive"
		c.Shaper.Mode = "temporal"
		c.Shaper.Filter = "ema"
	},
	"texture": func(c *Config) {
		c.Engine.Kind = "harmonic_noise"
		c.Shaper.Mode = "linear"
		c.Shaper.LatentDim = 4
		c.Mapper.DriftAmplitude = 0.08
	},
	"notes": func(c *Config) {
		c.Engine.Kind = "symbolic"
		c.Shaper.Mode = "temporal"
		c.Shaper.Filter = "median"
		c.Shaper.Window = 5
		c.Mapper.QuantizeLevels = 5
	},
	"encoder": func(c *Config) {
		c.Shaper.Mode = "nonlinear"
		c.Shaper.LatentDim = 2
	},
	"steady": func(c *Config) {
		c.Agent.HalfLife = 2 * time.Second
		c.Shaper.HalfLife = 400 * time.Millisecond
		c.Mapper.Inertia = 200 * time.Millisecond
	},
	"lively": func(c *Config) {
		c.Agent.HalfLife = 500 * time.Millisecond
		c.Agent.Jitter = 0.1
		c.Shaper.HalfLife = 100 * time.Millisecond
		c.Shaper.Velocity = true
		c.Mapper.Inertia = 50 * time.Millisecond
	},
}

// GetPreset returns a fresh config for name, or nil when it does not exist.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = name
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
