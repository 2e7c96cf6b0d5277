package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/ldclump/internal/duckdb"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List clumping runs recorded in a results database",
		Example: `  ldclump runs --results-db results.duckdb
  ldclump runs --results-db results.duckdb --lookup 1:1500_C/T`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup, _ := cmd.Flags().GetString("lookup")
			return runRuns(viper.GetString("results.db"), lookup)
		},
	}

	cmd.Flags().String("results-db", "", "DuckDB results database")
	cmd.Flags().String("lookup", "", "Show which seed absorbed this marker in each run")
	cmd.PreRunE = bindFlags(map[string]string{"results.db": "results-db"})

	return cmd
}

func runRuns(dbPath, lookup string) error {
	if dbPath == "" {
		return usageError{fmt.Errorf("--results-db is required")}
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open results database: %w", err)
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := "RUN\tCREATED\tINPUT\tTHRESHOLD\tWINDOW\tSEEDS\tFAILED"
	if lookup != "" {
		header += "\tSEED"
	}
	fmt.Fprintln(tw, header)

	for _, r := range runs {
		line := fmt.Sprintf("%s\t%s\t%s\t%g\t%d\t%d\t%d",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.InputPath, r.Threshold, r.Window, r.Seeds, r.Failed)
		if lookup != "" {
			seed, found, err := store.LookupSeed(r.ID, lookup)
			if err != nil {
				return err
			}
			if !found {
				seed = "-"
			}
			line += "\t" + seed
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}
