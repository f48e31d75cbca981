package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/esrecorder/esrecorder/recorder/sound"
)

var soundsCmd = &cobra.Command{
	Use:   "sounds",
	Short: "List the starter sounds available to export",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		catalog, err := sound.Load(cfg.Paths.Sounds)
		if err != nil {
			logrus.Fatalf("Failed to load sound catalog: %v", err)
		}
		fmt.Println(renderSounds(catalog))
	},
}
