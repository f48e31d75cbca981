package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/esrecorder/esrecorder/recorder/curve"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List recorded engines usable for export",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		curves, err := curve.LoadAvailable(cfg.Paths.Engines)
		if err != nil {
			logrus.Fatalf("Failed to read engines: %v", err)
		}
		fmt.Println(renderEngines(curves))
	},
}
