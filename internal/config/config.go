package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTickRate      = 10.0
	DefaultChunkDuration = 100 * time.Millisecond
	DefaultSampleRate    = 44100
	DefaultControlDim    = 4
	DefaultSeed          = 42

	DefaultShaperMode     = "temporal"
	DefaultShaperFilter   = "ema"
	DefaultShaperHalfLife = 200 * time.Millisecond
	DefaultShaperWindow   = 5
	DefaultLatentDim      = 4
	DefaultVelocityGain   = 10.0
	DefaultShaperWarmup   = 20
	DefaultShaperRefresh  = 10
	DefaultEncoderPath    = "models/encoder.yaml"

	DefaultHistory           = 10 * time.Second
	DefaultAgentHalfLife     = time.Second
	DefaultCalmThreshold     = 0.3
	DefaultActiveThreshold   = 0.7
	DefaultCorrectionPath    = "models/agent_correction.yaml"
	DefaultCorrectionContext = 10
	DefaultCorrectionBound   = 0.1

	DefaultMapperGain     = 6.0
	DefaultHysteresis     = 0.3
	DefaultReversal       = 0.6
	DefaultDriftAmplitude = 0.05
	DefaultDriftPeriod    = 2 * time.Minute
	DefaultQuantizeLevels = 3
	DefaultQuantizeMix    = 0.7
	DefaultInertia        = 100 * time.Millisecond

	DefaultEngineKind = "additive"
	DefaultSmoothing  = 75 * time.Millisecond
	DefaultBaseFreq   = 220.0
	DefaultCeiling    = 0.98
	DefaultVoices     = 8

	DefaultQueueDepth = 2
	DefaultUnderrun   = "repeat"

	DefaultSourceKind = "mock"
	DefaultOSCAddr    = ":8000"
	DefaultNoiseStd   = 0.05
	DefaultKeyStep    = 0.05
)

// Source kinds, shaper modes and filters accepted by Validate.
var (
	SourceKinds   = []string{"mock", "keyboard", "osc", "midi", "scripted"}
	ShaperModes   = []string{"linear", "nonlinear", "temporal"}
	ShaperFilters = []string{"ema", "moving_average", "median"}
	UnderrunModes = []string{"repeat", "silence"}
)

type Config struct {
	Name          string        `yaml:"name,omitempty"`
	TickRate      float64       `yaml:"tick_rate"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
	SampleRate    int           `yaml:"sample_rate"`
	ControlDim    int           `yaml:"control_dim"`
	Seed          int64         `yaml:"seed"`
	Source        SourceConfig  `yaml:"source"`
	Shaper        ShaperConfig  `yaml:"shaper"`
	Agent         AgentConfig   `yaml:"agent"`
	Mapper        MapperConfig  `yaml:"mapper"`
	Engine        EngineConfig  `yaml:"engine"`
	Cycle         CycleConfig   `yaml:"cycle"`
}

type SourceConfig struct {
	Kind         string  `yaml:"kind"`
	OSCAddr      string  `yaml:"osc_addr"`
	MIDIPort     int     `yaml:"midi_port"`
	MIDIControls []uint8 `yaml:"midi_controls"`
	NoiseStd     float64 `yaml:"noise_std"`
	KeyStep      float64 `yaml:"key_step"`
}

type ShaperConfig struct {
	Mode         string        `yaml:"mode"`
	LatentDim    int           `yaml:"latent_dim"`
	Filter       string        `yaml:"filter"`
	HalfLife     time.Duration `yaml:"half_life"`
	Window       int           `yaml:"window"`
	Velocity     bool          `yaml:"velocity"`
	VelocityGain float64       `yaml:"velocity_gain"`
	Warmup       int           `yaml:"warmup"`
	Refresh      int           `yaml:"refresh"`
	WeightsPath  string        `yaml:"weights_path"`
}

type AgentConfig struct {
	History           time.Duration `yaml:"history"`
	HalfLife          time.Duration `yaml:"half_life"`
	CalmThreshold     float64       `yaml:"calm_threshold"`
	ActiveThreshold   float64       `yaml:"active_threshold"`
	Jitter            float64       `yaml:"jitter"`
	CorrectionPath    string        `yaml:"correction_path"`
	CorrectionContext int           `yaml:"correction_context"`
	CorrectionBound   float64       `yaml:"correction_bound"`
}

type MapperConfig struct {
	Gain           float64       `yaml:"gain"`
	Hysteresis     float64       `yaml:"hysteresis"`
	Reversal       float64       `yaml:"reversal"`
	DriftAmplitude float64       `yaml:"drift_amplitude"`
	DriftPeriod    time.Duration `yaml:"drift_period"`
	QuantizeLevels int           `yaml:"quantize_levels"`
	QuantizeMix    float64       `yaml:"quantize_mix"`
	Inertia        time.Duration `yaml:"inertia"`
}

type EngineConfig struct {
	Kind      string        `yaml:"kind"`
	Smoothing time.Duration `yaml:"smoothing"`
	BaseFreq  float64       `yaml:"base_freq"`
	Ceiling   float64       `yaml:"ceiling"`
	Voices    int           `yaml:"voices"`
}

type CycleConfig struct {
	QueueDepth int    `yaml:"queue_depth"`
	Underrun   string `yaml:"underrun"`
}

func DefaultConfig() *Config {
	return &Config{
		TickRate:      DefaultTickRate,
		ChunkDuration: DefaultChunkDuration,
		SampleRate:    DefaultSampleRate,
		ControlDim:    DefaultControlDim,
		Seed:          DefaultSeed,
		Source: SourceConfig{
			Kind:         DefaultSourceKind,
			OSCAddr:      DefaultOSCAddr,
			MIDIControls: []uint8{1, 7, 10, 74},
			NoiseStd:     DefaultNoiseStd,
			KeyStep:      DefaultKeyStep,
		},
		Shaper: ShaperConfig{
			Mode:         DefaultShaperMode,
			LatentDim:    DefaultLatentDim,
			Filter:       DefaultShaperFilter,
			HalfLife:     DefaultShaperHalfLife,
			Window:       DefaultShaperWindow,
			VelocityGain: DefaultVelocityGain,
			Warmup:       DefaultShaperWarmup,
			Refresh:      DefaultShaperRefresh,
			WeightsPath:  DefaultEncoderPath,
		},
		Agent: AgentConfig{
			History:           DefaultHistory,
			HalfLife:          DefaultAgentHalfLife,
			CalmThreshold:     DefaultCalmThreshold,
			ActiveThreshold:   DefaultActiveThreshold,
			CorrectionPath:    DefaultCorrectionPath,
			CorrectionContext: DefaultCorrectionContext,
			CorrectionBound:   DefaultCorrectionBound,
		},
		Mapper: MapperConfig{
			Gain:           DefaultMapperGain,
			Hysteresis:     DefaultHysteresis,
			Reversal:       DefaultReversal,
			DriftAmplitude: DefaultDriftAmplitude,
			DriftPeriod:    DefaultDriftPeriod,
			QuantizeLevels: DefaultQuantizeLevels,
			QuantizeMix:    DefaultQuantizeMix,
			Inertia:        DefaultInertia,
		},
		Engine: EngineConfig{
			Kind:      DefaultEngineKind,
			Smoothing: DefaultSmoothing,
			BaseFreq:  DefaultBaseFreq,
			Ceiling:   DefaultCeiling,
			Voices:    DefaultVoices,
		},
		Cycle: CycleConfig{
			QueueDepth: DefaultQueueDepth,
			Underrun:   DefaultUnderrun,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(DefaultConfig(), path)
}

// LoadOver overlays the file at path on a copy of base.
func LoadOver(base *Config, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
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

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Source.MIDIControls = append([]uint8(nil), c.Source.MIDIControls...)
	return &cp
}

// TickInterval is the period of one cycle tick.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickRate)
}

// ChunkSamples is the number of samples rendered per tick.
func (c *Config) ChunkSamples() int {
	return int(c.ChunkDuration.Seconds() * float64(c.SampleRate))
}

// EffectiveLatentDim is the latent size the configured shaper produces.
func (c *Config) EffectiveLatentDim() int {
	if c.Shaper.Mode == "temporal" {
		if c.Shaper.Velocity {
			return c.ControlDim + 1
		}
		return c.ControlDim
	}
	return c.Shaper.LatentDim
}

// HistoryLen is the agent history capacity in ticks.
func (c *Config) HistoryLen() int {
	n := int(c.Agent.History.Seconds()*c.TickRate + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}
