package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/readsweep/readsweep"
	"github.com/readsweep/readsweep/internal/database"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that external dependencies are available",
	Long: `Check that the kraken2 executable is on PATH and that the configured
database directory has a valid layout.

Examples:
  readsweep check
  readsweep check --db /data/kraken/human`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	pipeline, err := readsweep.New()
	if err != nil {
		return err
	}

	failed := false
	if missing := pipeline.CheckDependencies(); len(missing) > 0 {
		failed = true
		for _, name := range missing {
			fmt.Printf("MISSING  %s is not executable on PATH\n", name)
		}
	} else {
		fmt.Println("OK       kraken2 is executable")
	}

	switch err := database.Validate(databaseDir); {
	case err == nil:
		fmt.Printf("OK       database at %s\n", databaseDir)
	case errors.Is(err, readsweep.ErrInvalidDatabase):
		failed = true
		fmt.Printf("MISSING  %v\n", err)
		fmt.Println("         run `readsweep download` to fetch the default human database")
	default:
		return err
	}

	if failed {
		return fmt.Errorf("dependency check failed")
	}
	return nil
}
