package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esrecorder/esrecorder/recorder"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	require.NoError(t, cfg.Validate())

	grid := cfg.Recording.Grid()
	assert.Len(t, grid.RPMs, 15, "1000..8000 step 500")
	assert.Equal(t, recorder.RPMPoint{RPM: 1000, Frequency: 10000}, grid.RPMs[0])
	assert.Equal(t, 8000, grid.RPMs[14].RPM)
	assert.Equal(t, []int{0, 100}, grid.Throttles)
}

func TestLoad_OverridesAndExplicitRPMList(t *testing.T) {
	// GIVEN a file overriding a few fields and listing RPMs explicitly
	path := filepath.Join(t.TempDir(), "esrecorder.yaml")
	doc := `
instances:
  capacity: 2
  usable: 2
recording:
  rpms:
    - {rpm: 900, frequency: 44100}
    - {rpm: 1800, frequency: 44100}
  throttles: [0, 50, 100]
export:
  dynamic_friction: 0.05
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	// WHEN loaded
	cfg, err := Load(path)
	require.NoError(t, err)

	// THEN overrides apply, everything else keeps its default
	assert.Equal(t, 2, cfg.Instances.Capacity)
	assert.Equal(t, 0.05, cfg.Export.DynamicFriction)
	assert.Equal(t, 23.0, cfg.Export.StaticFriction)
	assert.Equal(t, []int{900, 1800}, cfg.Recording.Grid().RPMValues())
	assert.Equal(t, []int{0, 50, 100}, cfg.Recording.Throttles)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esrecorder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export:\n  idle_rmp: 800\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_IdentifiesOffendingField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"usable above capacity", func(c *Config) { c.Instances.Usable = 9 }, "instances.usable"},
		{"zero step", func(c *Config) { c.Recording.Generate.Step = 0 }, "recording.generate.step"},
		{"throttle out of range", func(c *Config) { c.Recording.Throttles = []int{0, 120} }, "recording.throttles"},
		{"duplicate rpm", func(c *Config) {
			c.Recording.RPMs = []recorder.RPMPoint{{RPM: 1000, Frequency: 1}, {RPM: 1000, Frequency: 1}}
		}, "recording.rpms.rpm"},
		{"negative friction", func(c *Config) { c.Export.StaticFriction = -1 }, "export.static_friction"},
		{"max below idle", func(c *Config) { c.Export.MaxRPM = 800 }, "export.max_rpm"},
		{"relative url", func(c *Config) { c.Service.URL = "localhost" }, "service.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestWriteDefault_RoundTripsAndRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "esrecorder.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	assert.Error(t, WriteDefault(path, false))
	assert.NoError(t, WriteDefault(path, true))
}
