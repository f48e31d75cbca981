package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/esrecorder/esrecorder/recorder/config"
	"github.com/esrecorder/esrecorder/recorder/curve"
	"github.com/esrecorder/esrecorder/recorder/export"
	"github.com/esrecorder/esrecorder/recorder/sound"
)

var (
	idleRPM         int     // Idle speed written to the jbeam
	maxRPM          int     // Highest RPM of the exported torque table
	staticFriction  float64 // Constant friction torque, Nm
	dynamicFriction float64 // Friction torque per rad/s
	starterIndex    int     // Index into the sound catalog
	starterEvent    string  // Sound event name, overrides --starter-sound
)

var exportCmd = &cobra.Command{
	Use:   "export <engine>",
	Short: "Export a recorded engine as a jbeam torque table and sound blend",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		applyExportFlags(cmd, cfg)
		mustValidate(cfg)

		var catalog sound.Catalog
		if cfg.Paths.Sounds != "" {
			c, err := sound.Load(cfg.Paths.Sounds)
			if err != nil && starterEvent == "" {
				logrus.Fatalf("Failed to load sound catalog: %v", err)
			}
			catalog = c
		}
		starter, err := resolveStarter(catalog, cfg.Export.StarterSound, starterEvent)
		if err != nil {
			logrus.Fatalf("Invalid starter sound: %v", err)
		}

		curves, err := curve.LoadAvailable(cfg.Paths.Engines)
		if err != nil {
			logrus.Fatalf("Failed to read engines: %v", err)
		}
		c, ok := curve.Find(curves, args[0])
		if !ok {
			logrus.Fatalf("No usable recorded engine named %q in %s", args[0], cfg.Paths.Engines)
		}

		exp := &export.Exporter{EnginesDir: cfg.Paths.Engines, ExportsDir: cfg.Paths.Exports}
		res, err := exp.Export(c, exportParameters(cfg.Export, starter))
		if err != nil {
			logrus.Fatalf("Export failed: %v", err)
		}
		fmt.Println(renderExport(res))
	},
}

func applyExportFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("idle-rpm") {
		cfg.Export.IdleRPM = idleRPM
	}
	if flags.Changed("max-rpm") {
		cfg.Export.MaxRPM = maxRPM
	}
	if flags.Changed("static-friction") {
		cfg.Export.StaticFriction = staticFriction
	}
	if flags.Changed("dynamic-friction") {
		cfg.Export.DynamicFriction = dynamicFriction
	}
	if flags.Changed("starter-sound") {
		cfg.Export.StarterSound = starterIndex
	}
}

// resolveStarter picks the starter sound event: event when set, otherwise
// entry index of the catalog. A named event missing from a loaded catalog
// is accepted with a warning.
func resolveStarter(catalog sound.Catalog, index int, event string) (string, error) {
	if event != "" {
		if len(catalog) > 0 {
			if _, ok := catalog.Lookup(event); !ok {
				logrus.Warnf("Sound event %q is not in the catalog", event)
			}
		}
		return event, nil
	}
	s, err := catalog.At(index)
	if err != nil {
		return "", err
	}
	return s.EventName, nil
}

func exportParameters(ec config.ExportConfig, starter string) export.Parameters {
	return export.Parameters{
		IdleRPM:         ec.IdleRPM,
		MaxRPM:          ec.MaxRPM,
		StaticFriction:  ec.StaticFriction,
		DynamicFriction: ec.DynamicFriction,
		StarterSound:    starter,
	}
}

// bindExportFlags registers the flags of exportCmd on cmd.
func bindExportFlags(cmd *cobra.Command) {
	def := config.Default().Export
	cmd.Flags().IntVar(&idleRPM, "idle-rpm", def.IdleRPM, "Idle RPM")
	cmd.Flags().IntVar(&maxRPM, "max-rpm", def.MaxRPM, "Highest RPM of the torque table")
	cmd.Flags().Float64Var(&staticFriction, "static-friction", def.StaticFriction, "Static friction torque (Nm)")
	cmd.Flags().Float64Var(&dynamicFriction, "dynamic-friction", def.DynamicFriction, "Dynamic friction (Nm per rad/s)")
	cmd.Flags().IntVar(&starterIndex, "starter-sound", def.StarterSound, "Index of the starter sound in the catalog (see esrecorder sounds)")
	cmd.Flags().StringVar(&starterEvent, "starter-event", "", "Starter sound event name, overrides --starter-sound")
}

func init() {
	bindExportFlags(exportCmd)
}
