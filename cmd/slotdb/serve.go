package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/log"
	"github.com/cuemby/slotdb/internal/metrics"
	"github.com/cuemby/slotdb/internal/raft"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine and block, executing statements piped in or given with --exec",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("exec", "", "Run one statement and continue serving")
	serveCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on, empty disables it")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.Init(cfg.LogConfig())
	logger := log.WithComponent("serve")

	db, err := database.Open(cfg.DatabaseConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var node *raft.Node
	if cfg.Raft.Enabled {
		node, err = raft.Open(cfg.RaftConfig(), db)
		if err != nil {
			return fmt.Errorf("open raft node: %w", err)
		}
		defer node.Shutdown()
		logger.Info().Str("node_id", cfg.Raft.NodeID).Str("bind_addr", cfg.Raft.BindAddr).Msg("raft node started")
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	if exec, _ := cmd.Flags().GetString("exec"); exec != "" {
		result, err := db.Execute(exec)
		if err != nil {
			logger.Error().Err(err).Str("sql", exec).Msg("exec statement failed")
		} else {
			printResult(result)
		}
	}

	go serveStdin(db, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
	return nil
}

// serveStdin reads one SQL statement per line from stdin and prints its
// result, letting `slotdb serve` be driven by a script or pipe.
func serveStdin(db *database.Database, logger zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		sql := strings.TrimSpace(scanner.Text())
		if sql == "" {
			continue
		}
		result, err := db.Execute(sql)
		if err != nil {
			logger.Error().Err(err).Str("sql", sql).Msg("statement failed")
			continue
		}
		printResult(result)
	}
}
