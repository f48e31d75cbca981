package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/cluster"
	"github.com/esrecorder/esrecorder/recorder/config"
	"github.com/esrecorder/esrecorder/recorder/curve"
	"github.com/esrecorder/esrecorder/recorder/dyno"
	"github.com/esrecorder/esrecorder/recorder/export"
	"github.com/esrecorder/esrecorder/recorder/history"
	"github.com/esrecorder/esrecorder/recorder/sound"
	"github.com/esrecorder/esrecorder/recorder/sweep"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"record", "export", "engines", "sounds", "history", "config"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_PersistentFlagDefaults(t *testing.T) {
	assert.Equal(t, "info", rootCmd.PersistentFlags().Lookup("log").DefValue)
	assert.Equal(t, config.DefaultPath, rootCmd.PersistentFlags().Lookup("config").DefValue)
}

func TestApplyRecordFlags_OnlyChangedFlagsOverride(t *testing.T) {
	// GIVEN a config with a non-default usable count and a command where
	// only --prerun and --throttles were set
	cfg := config.Default()
	cfg.Instances.Usable = 3
	cmd := &cobra.Command{}
	bindRecordFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--prerun", "7", "--throttles", "0,50,100"}))

	// WHEN the flags are applied
	require.NoError(t, applyRecordFlags(cmd, &cfg))

	// THEN the set flags win and the config value of an unset flag survives
	assert.Equal(t, 7, cfg.Recording.PrerunCount)
	assert.Equal(t, []int{0, 50, 100}, cfg.Recording.Throttles)
	assert.Equal(t, 3, cfg.Instances.Usable)
}

func TestApplyRecordFlags_RPMRangeReplacesExplicitList(t *testing.T) {
	// GIVEN a config with an explicit RPM list
	cfg := config.Default()
	cfg.Recording.RPMs = []recorder.RPMPoint{{RPM: 900, Frequency: 8000}}
	cmd := &cobra.Command{}
	bindRecordFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--rpms", "1000:2000:500", "--frequency", "44100"}))

	// WHEN the flags are applied
	require.NoError(t, applyRecordFlags(cmd, &cfg))

	// THEN the grid is generated from the range
	assert.Equal(t, []recorder.RPMPoint{
		{RPM: 1000, Frequency: 44100},
		{RPM: 1500, Frequency: 44100},
		{RPM: 2000, Frequency: 44100},
	}, cfg.Recording.RPMGrid())
}

func TestApplyRecordFlags_MalformedRange(t *testing.T) {
	cfg := config.Default()
	cmd := &cobra.Command{}
	bindRecordFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--rpms", "1000-2000"}))

	err := applyRecordFlags(cmd, &cfg)

	var fe *config.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "rpms", fe.Field)
}

func TestParseRPMRange(t *testing.T) {
	gen, err := parseRPMRange("800: 7000 :250")
	require.NoError(t, err)
	assert.Equal(t, config.RPMGenerator{Min: 800, Max: 7000, Step: 250}, *gen)

	_, err = parseRPMRange("800:x:250")
	assert.Error(t, err)
}

func TestApplyExportFlags(t *testing.T) {
	cfg := config.Default()
	cmd := &cobra.Command{}
	bindExportFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--max-rpm", "9000", "--starter-sound", "2"}))

	applyExportFlags(cmd, &cfg)

	assert.Equal(t, 9000, cfg.Export.MaxRPM)
	assert.Equal(t, 2, cfg.Export.StarterSound)
	assert.Equal(t, config.Default().Export.IdleRPM, cfg.Export.IdleRPM)

	p := exportParameters(cfg.Export, "starter_v8")
	assert.Equal(t, export.Parameters{
		IdleRPM:         cfg.Export.IdleRPM,
		MaxRPM:          9000,
		StaticFriction:  cfg.Export.StaticFriction,
		DynamicFriction: cfg.Export.DynamicFriction,
		StarterSound:    "starter_v8",
	}, p)
}

func TestResolveStarter(t *testing.T) {
	catalog := sound.Catalog{
		{EventName: "starter_i4", PrettyName: "Inline 4"},
		{EventName: "starter_v8", PrettyName: "V8"},
	}

	got, err := resolveStarter(catalog, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "starter_v8", got)

	got, err = resolveStarter(catalog, 5, "custom_event")
	require.NoError(t, err)
	assert.Equal(t, "custom_event", got, "an explicit event skips the index")

	_, err = resolveStarter(catalog, 5, "")
	assert.Error(t, err)

	_, err = resolveStarter(nil, 0, "")
	assert.Error(t, err, "an empty catalog has no entry 0")
}

func TestRenderInstances(t *testing.T) {
	out := renderInstances([]cluster.InstanceView{
		{ID: 0, PhaseName: "recording", Status: cluster.StatusBusy, StatusName: "busy", Usable: true, StateName: "recording", Progress: 40},
		{ID: 1, PhaseName: "uninitialized", StatusName: "ready"},
	})
	assert.Contains(t, out, "Instances")
	assert.Contains(t, out, "#0")
	assert.Contains(t, out, "40%")
	assert.Contains(t, out, "unused")
}

func TestRenderResult(t *testing.T) {
	res := &sweep.Result{
		RunID:     uuid.New(),
		Engine:    recorder.EngineInfo{Name: "Inline 4"},
		Elapsed:   1500 * time.Millisecond,
		GridSize:  4,
		Instances: 2,
		Recorded:  3,
		Missed:    []sweep.Sample{{RPM: 2000, Throttle: 100}},
		Aborted:   true,
	}
	out := renderResult(res)
	assert.Contains(t, out, "Inline 4")
	assert.Contains(t, out, "aborted")
	assert.Contains(t, out, "3/4")
	assert.Contains(t, out, "2000/100")
	assert.NotContains(t, out, "saved")
}

func TestRenderEngines(t *testing.T) {
	assert.Contains(t, renderEngines(nil), "no recorded engines")

	out := renderEngines([]*curve.RecordedCurve{{
		Name:         "Inline 4: Twin Cam",
		FileName:     "Inline 4_ Twin Cam",
		Displacement: 1.998,
		Redline:      7000,
		Dyno100:      []dyno.Sample{{RPM: 1000}, {RPM: 6500}},
		MaxTorque:    180.5,
	}})
	assert.Contains(t, out, "Inline 4: Twin Cam")
	assert.Contains(t, out, "2.0L")
	assert.Contains(t, out, "1000-6500")
}

func TestRenderSounds(t *testing.T) {
	out := renderSounds(sound.Catalog{{EventName: "starter_v8", PrettyName: "V8"}})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "0")
	assert.Contains(t, lines[1], "starter_v8")
}

func TestRenderHistory(t *testing.T) {
	assert.Contains(t, renderHistory(nil), "no sweeps recorded")

	out := renderHistory([]history.Entry{{ID: "run-1", Engine: "V8", Recorded: 10, GridSize: 12, Missed: 2}})
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "10/12")
	assert.Contains(t, out, "complete")
}

func TestRenderExport(t *testing.T) {
	out := renderExport(&export.Result{
		Blend:     "inline_4",
		JBeam:     "exports/inline_4.jbeam",
		Blend2D:   "exports/inline_4.sfxBlend2D.json",
		SampleDir: "exports/inline_4",
		Torque:    make([]export.TorquePoint, 6),
		Copied:    3,
		Missing:   []string{"engines/inline_4/inline_4_1000_0.wav"},
	})
	assert.Contains(t, out, "6 torque points")
	assert.Contains(t, out, "3 in exports/inline_4")
	assert.Contains(t, out, "inline_4_1000_0.wav")
}
