// Package config loads the recorder's YAML configuration.
//
// A missing file yields Default(). Unknown keys are rejected so typos
// surface instead of silently falling back to defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/esrecorder/esrecorder/recorder"
)

// DefaultPath is where commands look for the configuration.
const DefaultPath = "esrecorder.yaml"

// FieldError rejects one input field before any sweep or export starts.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Config represents the full esrecorder.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Instances InstancesConfig `yaml:"instances"`
	Recording RecordingConfig `yaml:"recording"`
	Export    ExportConfig    `yaml:"export"`
	Paths     PathsConfig     `yaml:"paths"`
}

// ServiceConfig locates the engine-simulation service.
type ServiceConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per call; 0 waits indefinitely
	Asset          string `yaml:"asset"`
}

// InstancesConfig sizes the instance pool.
type InstancesConfig struct {
	Capacity int `yaml:"capacity"`
	Usable   int `yaml:"usable"`
}

// RPMGenerator is the evenly spaced alternative to an explicit RPM list.
type RPMGenerator struct {
	Min       int `yaml:"min"`
	Max       int `yaml:"max"`
	Step      int `yaml:"step"`
	Frequency int `yaml:"frequency"`
}

// RecordingConfig is the sweep grid and per-sample parameters.
type RecordingConfig struct {
	SampleLength int                 `yaml:"sample_length"`
	PrerunCount  int                 `yaml:"prerun_count"`
	RPMs         []recorder.RPMPoint `yaml:"rpms,omitempty"`
	Generate     *RPMGenerator       `yaml:"generate,omitempty"`
	Throttles    []int               `yaml:"throttles"`
}

// ExportConfig holds the defaults of the export parameters.
type ExportConfig struct {
	IdleRPM         int     `yaml:"idle_rpm"`
	MaxRPM          int     `yaml:"max_rpm"`
	StaticFriction  float64 `yaml:"static_friction"`
	DynamicFriction float64 `yaml:"dynamic_friction"`
	StarterSound    int     `yaml:"starter_sound"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	Engines string `yaml:"engines"`
	Exports string `yaml:"exports"`
	Sounds  string `yaml:"sounds"`
	History string `yaml:"history"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			URL:   "http://127.0.0.1:7247",
			Asset: "./es/assets/main.mr",
		},
		Instances: InstancesConfig{Capacity: 8, Usable: 4},
		Recording: RecordingConfig{
			SampleLength: 5,
			PrerunCount:  100,
			Generate:     &RPMGenerator{Min: 1000, Max: 8000, Step: 500, Frequency: 10000},
			Throttles:    []int{0, 100},
		},
		Export: ExportConfig{
			IdleRPM:         900,
			MaxRPM:          7500,
			StaticFriction:  23,
			DynamicFriction: 0.023,
			StarterSound:    0,
		},
		Paths: PathsConfig{
			Engines: "./engines",
			Exports: "./exports",
			Sounds:  "./sounds.xml",
			History: "./esrecorder.db",
		},
	}
}

// Load reads path over Default(). A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// WriteDefault writes Default() to path, refusing to overwrite unless force.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RPMGrid returns the configured RPM list: the explicit list if present,
// otherwise the generated one.
func (r RecordingConfig) RPMGrid() []recorder.RPMPoint {
	if len(r.RPMs) > 0 {
		return append([]recorder.RPMPoint(nil), r.RPMs...)
	}
	if r.Generate == nil {
		return nil
	}
	return recorder.GenerateRPMs(r.Generate.Min, r.Generate.Max, r.Generate.Step, r.Generate.Frequency)
}

// Grid returns the sweep grid.
func (r RecordingConfig) Grid() recorder.Grid {
	return recorder.Grid{RPMs: r.RPMGrid(), Throttles: append([]int(nil), r.Throttles...)}
}
