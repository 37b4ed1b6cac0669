package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/log"
)

var execCmd = &cobra.Command{
	Use:   "exec <sql>",
	Short: "Open the engine and run one statement",
	Args:  cobra.ExactArgs(1),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.Init(cfg.LogConfig())

	db, err := database.Open(cfg.DatabaseConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	result, err := db.Execute(args[0])
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func printResult(result database.QueryResult) {
	switch r := result.(type) {
	case database.RowsResult:
		fmt.Println(tabulate(r.Schema, r.Rows))
	case database.CountResult:
		fmt.Printf("OK (%d row(s) affected)\n", r.Affected)
	case database.EmptyResult:
		fmt.Println("OK")
	}
}
