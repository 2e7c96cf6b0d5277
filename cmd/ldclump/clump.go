package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/ldclump/internal/assoc"
	"github.com/inodb/ldclump/internal/clump"
	"github.com/inodb/ldclump/internal/duckdb"
	"github.com/inodb/ldclump/internal/ld"
	"github.com/inodb/ldclump/internal/report"
)

func newClumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clump [flags] <assoc-file>",
		Short: "LD-clump association results",
		Long: `Clump association results by linkage disequilibrium.

The input is a tab- or whitespace-delimited association table (plain or
gzipped; use '-' for stdin). Reference LD comes from a database built with
'ldclump load-ld' (--ld-db) or from pairwise LD tables loaded on the fly
(--ld-file).`,
		Example: `  ldclump clump --ld-db ref.duckdb assoc.epacts.gz
  ldclump clump --ld-file chr1.ld --threshold 0.2 --window 500000 -o clumped.tsv assoc.epacts
  ldclump clump --ld-db ref.duckdb --max-pvalue 5e-8 --failed failed.tsv assoc.epacts`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClump(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.Float64("threshold", clump.DefaultThreshold, "Minimum r² for a variant to be clumped with a seed")
	f.Int64("window", clump.DefaultWindow, "Half-width of the region searched around each seed (bp)")
	f.String("ld-db", "", "Reference LD database (DuckDB)")
	f.StringSlice("ld-file", nil, "Pairwise LD table to load into an in-memory database (repeatable)")
	f.StringP("output", "o", "", "Output file (default: stdout)")
	f.String("failed", "", "Write variants that could not be clumped to this file")
	f.Float64("max-pvalue", 0, "Only clump variants with p-value at or below this (0: no limit)")
	f.String("results-db", "", "Record the run in this DuckDB results database")
	f.Bool("no-color", false, "Disable colored warnings")
	f.String("marker-col", assoc.DefaultColumns().Marker, "Marker ID column name")
	f.String("chrom-col", assoc.DefaultColumns().Chrom, "Chromosome column name")
	f.String("pos-col", assoc.DefaultColumns().Pos, "Position column name")
	f.String("pvalue-col", assoc.DefaultColumns().PValue, "P-value column name")

	cmd.PreRunE = bindFlags(map[string]string{
		"clump.threshold":  "threshold",
		"clump.window":     "window",
		"clump.max_pvalue": "max-pvalue",
		"ld.db":            "ld-db",
		"results.db":       "results-db",
		"columns.marker":   "marker-col",
		"columns.chrom":    "chrom-col",
		"columns.pos":      "pos-col",
		"columns.pvalue":   "pvalue-col",
	})

	return cmd
}

// bindFlags returns a PreRunE that binds config keys to the running
// command's flags, so values resolve flag > env > config > default. Binding
// happens at run time because viper keeps one binding per key.
func bindFlags(keys map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		for key, flag := range keys {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
		return nil
	}
}

func columnNames() assoc.ColumnNames {
	return assoc.ColumnNames{
		Marker: viper.GetString("columns.marker"),
		Chrom:  viper.GetString("columns.chrom"),
		Pos:    viper.GetString("columns.pos"),
		PValue: viper.GetString("columns.pvalue"),
	}
}

func runClump(cmd *cobra.Command, inputPath string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	opts := clump.Options{
		Threshold: viper.GetFloat64("clump.threshold"),
		Window:    viper.GetInt64("clump.window"),
	}
	if err := opts.Validate(); err != nil {
		return usageError{err}
	}

	finder, err := openFinder(cmd, logger)
	if err != nil {
		return err
	}
	defer finder.Close()

	parser, err := assoc.NewParser(inputPath, columnNames())
	if err != nil {
		return err
	}
	defer parser.Close()
	parser.SetLogger(logger)
	if maxP := viper.GetFloat64("clump.max_pvalue"); maxP > 0 {
		parser.SetMaxPValue(maxP)
	}

	rs, err := parser.ReadAll()
	if err != nil {
		return err
	}
	if parser.Skipped() > 0 {
		logger.Info("skipped association records", zap.Int("count", parser.Skipped()))
	}

	outputPath, _ := cmd.Flags().GetString("output")
	var out io.Writer = os.Stdout
	progress := io.Writer(os.Stdout)
	if outputPath == "" {
		// Keep stdout clean for the table.
		progress = os.Stderr
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	console := report.NewConsole(progress, os.Stderr)
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		console.DisableColor()
	}

	engine, err := clump.NewEngine(finder, opts)
	if err != nil {
		return err
	}
	var diag clump.Diagnostics = console
	if verbose {
		// Mirror diagnostics into the debug log; otherwise the console is
		// the only place warnings are printed.
		diag = report.Multi{console, report.NewLogger(logger)}
	}
	engine.SetDiagnostics(diag)
	engine.SetLogger(logger)

	res, err := engine.Clump(rs)
	if err != nil {
		return fmt.Errorf("clump %s: %w", inputPath, err)
	}

	if err := assoc.NewWriter(out, res.Set).WriteAll(res.Set); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if failedPath, _ := cmd.Flags().GetString("failed"); failedPath != "" {
		if err := writeFailedFile(failedPath, res); err != nil {
			return err
		}
	}

	if dbPath := viper.GetString("results.db"); dbPath != "" {
		if err := recordRun(dbPath, inputPath, opts, res, logger); err != nil {
			return err
		}
	}

	logger.Info("clumping complete",
		zap.Int("seeds", len(res.Set.Records)),
		zap.Int("failed", len(res.Failed)))
	return nil
}

// openFinder opens the reference LD database, or builds an in-memory one
// from --ld-file tables. A database named with --ld-db alone must already
// exist and hold pairs.
func openFinder(cmd *cobra.Command, logger *zap.Logger) (*ld.Store, error) {
	dbPath := viper.GetString("ld.db")
	files, _ := cmd.Flags().GetStringSlice("ld-file")
	if dbPath == "" && len(files) == 0 {
		return nil, usageError{fmt.Errorf("reference LD required: use --ld-db or --ld-file")}
	}

	if dbPath != "" {
		dbPath = ldDBPath(dbPath)
		if len(files) == 0 {
			if _, err := os.Stat(dbPath); err != nil {
				return nil, fmt.Errorf("reference LD database %s (build it with 'ldclump load-ld'): %w", dbPath, err)
			}
		}
	}

	store, err := ld.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ld database: %w", err)
	}
	store.SetLogger(logger)

	for _, path := range files {
		if _, err := store.LoadPairs(path); err != nil {
			store.Close()
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	count, err := store.Count()
	if err != nil {
		store.Close()
		return nil, err
	}
	if count == 0 {
		store.Close()
		return nil, fmt.Errorf("reference LD has no pairs")
	}
	logger.Debug("reference ld ready", zap.String("db", dbPath), zap.Int64("pairs", count))
	return store, nil
}

func writeFailedFile(path string, res *clump.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failed-variants file: %w", err)
	}
	defer f.Close()

	if err := assoc.WriteFailed(f, res.Failed); err != nil {
		return fmt.Errorf("write failed variants: %w", err)
	}
	return nil
}

func recordRun(dbPath, inputPath string, opts clump.Options, res *clump.Result, logger *zap.Logger) error {
	fp, err := duckdb.StatFile(inputPath)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open results database: %w", err)
	}
	defer store.Close()

	run := duckdb.NewRun(res, opts, fp)
	if err := store.WriteRun(run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	logger.Info("recorded run", zap.String("run_id", run.ID), zap.String("db", dbPath))
	return nil
}
