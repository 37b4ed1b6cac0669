package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cuemby/slotdb/internal/wal"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Print the WAL records Replay would recover, without mutating state",
	RunE:  runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	walPath := filepath.Join(cfg.DataDir, cfg.WalFileName)
	records, err := wal.Replay(walPath)
	if err != nil {
		return err
	}
	for i, rec := range records {
		fmt.Printf("%d: kind=%s table=%s\n", i, rec.Kind, rec.Table)
	}
	fmt.Printf("%d record(s)\n", len(records))
	return nil
}
