package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/esrecorder/esrecorder/recorder/history"
)

var historyLimit int // Maximum number of sweeps listed

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sweeps, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		db := openHistory()
		defer func() { _ = db.Close() }()
		entries, err := db.List(historyLimit)
		if err != nil {
			logrus.Fatalf("Failed to read history: %v", err)
		}
		fmt.Println(renderHistory(entries))
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one sweep as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db := openHistory()
		entry, err := db.Get(args[0])
		_ = db.Close()
		if errors.Is(err, history.ErrNotFound) {
			logrus.Fatalf("No sweep %s in history", args[0])
		}
		if err != nil {
			logrus.Fatalf("Failed to read history: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entry); err != nil {
			logrus.Fatalf("Failed to write entry: %v", err)
		}
	},
}

func openHistory() *history.Store {
	cfg := loadConfig()
	if cfg.Paths.History == "" {
		logrus.Fatalf("paths.history is not set")
	}
	db, err := history.Open(cfg.Paths.History)
	if err != nil {
		logrus.Fatalf("Failed to open history: %v", err)
	}
	return db
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of sweeps listed (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
}
