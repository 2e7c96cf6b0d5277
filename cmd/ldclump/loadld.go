package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/ldclump/internal/ld"
)

func newLoadLDCmd() *cobra.Command {
	var (
		dbPath string
		reset  bool
	)

	cmd := &cobra.Command{
		Use:   "load-ld --db <path> <ld-file>...",
		Short: "Import pairwise LD tables into a reference database",
		Long: `Import pairwise LD tables into a DuckDB reference database for clumping.

Each file is whitespace-delimited (plain or gzipped) with a header containing
CHR_A BP_A SNP_A CHR_B BP_B SNP_B R2 and optionally DP, as written by
'plink --r2 dprime'. Pairs spanning two chromosomes are skipped.`,
		Example: `  ldclump load-ld --db ref.duckdb chr1.ld.gz chr2.ld.gz
  ldclump load-ld --db ref.duckdb --reset chr22.ld`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadLD(dbPath, reset, args)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Reference LD database path")
	cmd.Flags().BoolVar(&reset, "reset", false, "Remove an existing database before loading")
	cmd.MarkFlagRequired("db")

	return cmd
}

// ldDBPath gives a reference LD database path a .duckdb extension unless it
// already has a database extension.
func ldDBPath(path string) string {
	if ext := filepath.Ext(path); ext != ".duckdb" && ext != ".db" {
		return path + ".duckdb"
	}
	return path
}

func runLoadLD(dbPath string, reset bool, files []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	dbPath = ldDBPath(dbPath)

	if reset {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove existing database: %w", err)
		}
	}

	store, err := ld.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open ld database: %w", err)
	}
	defer store.Close()
	store.SetLogger(logger)

	fmt.Fprintf(os.Stderr, "Loading reference LD into %s\n", dbPath)

	total := 0
	for _, path := range files {
		n, err := store.LoadPairs(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "  %s: %d pairs\n", path, n)
		total += n
	}

	count, err := store.Count()
	if err != nil {
		return err
	}

	var sizeStr string
	if stat, err := os.Stat(dbPath); err == nil {
		sizeStr = fmt.Sprintf("%.2f MB", float64(stat.Size())/(1024*1024))
	} else {
		sizeStr = "unknown"
	}

	fmt.Fprintf(os.Stderr, "\nLoad complete!\n")
	fmt.Fprintf(os.Stderr, "  Pairs loaded: %d\n", total)
	fmt.Fprintf(os.Stderr, "  Pairs in database: %d\n", count)
	fmt.Fprintf(os.Stderr, "  Database size: %s\n", sizeStr)

	logger.Debug("load-ld finished", zap.Int("files", len(files)), zap.Int64("pairs", count))
	return nil
}
