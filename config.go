package clairkeys

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// EnvelopeConfig shapes the piano voice ADSR.
type EnvelopeConfig struct {
	AttackSec    float64 `yaml:"attackSec"`
	DecaySec     float64 `yaml:"decaySec"`
	SustainLevel float64 `yaml:"sustainLevel"`
	ReleaseSec   float64 `yaml:"releaseSec"`
}

// Config carries the engine's tuning knobs. Zero-valued fields fall back to
// the defaults, so a partial YAML file only overrides what it names.
type Config struct {
	// UpdateIntervalMs is the tick period driving time updates and the
	// falling-notes diff.
	UpdateIntervalMs int `yaml:"updateIntervalMs"`
	// LookAheadSec sizes the upcoming-note window and the tolerated drift
	// between the wall anchor and the audio clock.
	LookAheadSec       float64 `yaml:"lookAheadSec"`
	MinNoteDurationSec float64 `yaml:"minNoteDurationSec"`
	// MaxConcurrentVisualNotes caps noteStart emission; audio is unaffected.
	MaxConcurrentVisualNotes int `yaml:"maxConcurrentVisualNotes"`
	VoiceLimit               int `yaml:"voiceLimit"`
	// FollowToleranceSec is the +/- window for matching played notes in
	// follow mode.
	FollowToleranceSec float64 `yaml:"followToleranceSec"`
	// StepEpsilonSec groups near-simultaneous note starts into one practice
	// step.
	StepEpsilonSec float64 `yaml:"stepEpsilonSec"`
	// TempoIncrement is added to the practice tempo after each completed
	// pass below target.
	TempoIncrement float64        `yaml:"tempoIncrement"`
	SampleRate     int            `yaml:"sampleRate"`
	Envelope       EnvelopeConfig `yaml:"envelope"`
	Metronome      bool           `yaml:"metronome"`
}

func DefaultConfig() Config {
	return Config{
		UpdateIntervalMs:         16,
		LookAheadSec:             0.1,
		MinNoteDurationSec:       0.05,
		MaxConcurrentVisualNotes: 10,
		VoiceLimit:               24,
		FollowToleranceSec:       0.2,
		StepEpsilonSec:           0.1,
		TempoIncrement:           0.1,
		SampleRate:               44100,
		Envelope: EnvelopeConfig{
			AttackSec:    0.02,
			DecaySec:     0.1,
			SustainLevel: 0.6,
			ReleaseSec:   0.3,
		},
	}
}

// withDefaults fills zero fields from DefaultConfig. Metronome stays as
// given since false is its default.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.UpdateIntervalMs == 0 {
		c.UpdateIntervalMs = def.UpdateIntervalMs
	}
	if c.LookAheadSec == 0 {
		c.LookAheadSec = def.LookAheadSec
	}
	if c.MinNoteDurationSec == 0 {
		c.MinNoteDurationSec = def.MinNoteDurationSec
	}
	if c.MaxConcurrentVisualNotes == 0 {
		c.MaxConcurrentVisualNotes = def.MaxConcurrentVisualNotes
	}
	if c.VoiceLimit == 0 {
		c.VoiceLimit = def.VoiceLimit
	}
	if c.FollowToleranceSec == 0 {
		c.FollowToleranceSec = def.FollowToleranceSec
	}
	if c.StepEpsilonSec == 0 {
		c.StepEpsilonSec = def.StepEpsilonSec
	}
	if c.TempoIncrement == 0 {
		c.TempoIncrement = def.TempoIncrement
	}
	if c.SampleRate == 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Envelope.AttackSec == 0 {
		c.Envelope.AttackSec = def.Envelope.AttackSec
	}
	if c.Envelope.DecaySec == 0 {
		c.Envelope.DecaySec = def.Envelope.DecaySec
	}
	if c.Envelope.SustainLevel == 0 {
		c.Envelope.SustainLevel = def.Envelope.SustainLevel
	}
	if c.Envelope.ReleaseSec == 0 {
		c.Envelope.ReleaseSec = def.Envelope.ReleaseSec
	}
	return c
}

func (c Config) validate() error {
	if c.UpdateIntervalMs < 0 {
		return fmt.Errorf("updateIntervalMs %d must not be negative", c.UpdateIntervalMs)
	}
	if c.LookAheadSec < 0 {
		return fmt.Errorf("lookAheadSec %g must not be negative", c.LookAheadSec)
	}
	if c.MinNoteDurationSec < 0 {
		return fmt.Errorf("minNoteDurationSec %g must not be negative", c.MinNoteDurationSec)
	}
	if c.MaxConcurrentVisualNotes < 0 {
		return fmt.Errorf("maxConcurrentVisualNotes %d must not be negative", c.MaxConcurrentVisualNotes)
	}
	if c.VoiceLimit < 0 {
		return fmt.Errorf("voiceLimit %d must not be negative", c.VoiceLimit)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("sampleRate %d must not be negative", c.SampleRate)
	}
	return nil
}

// LoadConfig reads a YAML file and overlays it on the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c.withDefaults(), nil
}
