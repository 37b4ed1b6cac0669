package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/slotdb/internal/config"
	"github.com/cuemby/slotdb/internal/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slotdb",
	Short: "slotdb - a single-writer relational storage engine",
	Long: `slotdb is a page-oriented relational storage engine with
write-ahead logging, B+Tree and hash indexes, a SQL planner/executor,
and optional Raft-replicated durability.`,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "./slotdb-data", "Data directory")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(replayCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// loadConfig builds a config.Config from --config if given, otherwise
// from --data-dir and the other persistent flags directly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		return config.Load(configPath)
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	cfg := config.Default(dataDir)
	cfg.LogLevel = logLevel
	cfg.LogJSON = logJSON
	return cfg, nil
}
