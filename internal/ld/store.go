package ld

import (
	"bufio"
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/inodb/ldclump/internal/variant"
)

// Store serves LD from a DuckDB table of precomputed reference pairs, such as
// the output of `plink --r2 dprime`.
type Store struct {
	db        *sql.DB
	computePS *sql.Stmt // prepared statement for Compute, lazily initialized
	results   Results
	logger    *zap.Logger
}

// Open opens or creates a DuckDB database for reference LD at the given path.
// Use an empty string for an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop()}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// SetLogger sets the logger for load progress and per-seed debug output.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ld_pairs (
		chrom VARCHAR,
		pos1 BIGINT,
		marker1 VARCHAR,
		pos2 BIGINT,
		marker2 VARCHAR,
		rsq DOUBLE,
		dprime DOUBLE
	)`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_ld_pos1 ON ld_pairs (chrom, pos1)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_ld_pos2 ON ld_pairs (chrom, pos2)`)
	return err
}

// Count returns the number of stored pairs.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM ld_pairs").Scan(&count); err != nil {
		return 0, fmt.Errorf("count ld pairs: %w", err)
	}
	return count, nil
}

// Compute implements Finder. Pairs are stored once per unordered pair, so
// the seed is matched on either side. Returns false when the reference has
// no pair for the seed within the window. Chromosomes are compared without
// a "chr" prefix; result keys use chrom as given.
func (s *Store) Compute(seedKey, chrom string, start, end int64, threshold float64) (bool, error) {
	s.results = make(Results)

	seedPos, err := parseKeyPos(seedKey)
	if err != nil {
		return false, err
	}

	if s.computePS == nil {
		ps, err := s.db.Prepare(`
			SELECT pos2, rsq, dprime FROM ld_pairs
			WHERE chrom = ? AND pos1 = ? AND pos2 BETWEEN ? AND ?
			UNION ALL
			SELECT pos1, rsq, dprime FROM ld_pairs
			WHERE chrom = ? AND pos2 = ? AND pos1 BETWEEN ? AND ?`)
		if err != nil {
			return false, fmt.Errorf("prepare ld query: %w", err)
		}
		s.computePS = ps
	}

	norm := variant.NormalizeChrom(chrom)
	rows, err := s.computePS.Query(norm, seedPos, start, end, norm, seedPos, start, end)
	if err != nil {
		return false, fmt.Errorf("query ld for %s: %w", seedKey, err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos int64
		var p Pair
		if err := rows.Scan(&pos, &p.RSquared, &p.DPrime); err != nil {
			return false, fmt.Errorf("scan ld pair: %w", err)
		}
		s.results[variant.PositionKey(chrom, pos)] = p
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate ld pairs: %w", err)
	}

	s.logger.Debug("computed ld",
		zap.String("seed", seedKey),
		zap.Int64("start", start),
		zap.Int64("end", end),
		zap.Int("pairs", len(s.results)))

	return len(s.results) > 0, nil
}

// Lookup implements Finder.
func (s *Store) Lookup(key string) (Pair, bool) {
	p, ok := s.results[key]
	return p, ok
}

// parseKeyPos extracts the position from a "chrom:pos" key.
func parseKeyPos(key string) (int64, error) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return 0, fmt.Errorf("invalid position key %q", key)
	}
	pos, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position key %q: %w", key, err)
	}
	return pos, nil
}

// LoadPairs bulk-loads a pairwise LD table. The file is whitespace-delimited
// (plain or gzipped) with a header naming at least
//
//	CHR_A  BP_A  SNP_A  CHR_B  BP_B  SNP_B  R2
//
// and optionally DP (D'). Pairs spanning two chromosomes are skipped.
// A file is loaded in one transaction: on error nothing from it is kept.
// Returns the number of pairs inserted.
func (s *Store) LoadPairs(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open ld file: %w", err)
	}
	defer f.Close()

	r, err := maybeGzip(f)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	return s.loadPairs(r)
}

// maybeGzip wraps f in a gzip reader when it starts with the gzip magic number.
func maybeGzip(f *os.File) (io.ReadCloser, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read ld header: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, nil
	}
	return io.NopCloser(br), nil
}

// pairColumns holds the indices of the LD table columns.
type pairColumns struct {
	chrA, bpA, snpA, chrB, bpB, snpB, r2, dp int
}

func parsePairHeader(fields []string) (pairColumns, error) {
	cols := pairColumns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, f := range fields {
		switch f {
		case "CHR_A":
			cols.chrA = i
		case "BP_A":
			cols.bpA = i
		case "SNP_A":
			cols.snpA = i
		case "CHR_B":
			cols.chrB = i
		case "BP_B":
			cols.bpB = i
		case "SNP_B":
			cols.snpB = i
		case "R2":
			cols.r2 = i
		case "DP":
			cols.dp = i
		}
	}
	for name, idx := range map[string]int{
		"CHR_A": cols.chrA, "BP_A": cols.bpA, "SNP_A": cols.snpA,
		"CHR_B": cols.chrB, "BP_B": cols.bpB, "SNP_B": cols.snpB, "R2": cols.r2,
	} {
		if idx == -1 {
			return cols, fmt.Errorf("required column '%s' not found in ld header", name)
		}
	}
	return cols, nil
}

func (s *Store) loadPairs(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("read ld header: %w", err)
		}
		return 0, fmt.Errorf("empty ld file")
	}
	cols, err := parsePairHeader(strings.Fields(scanner.Text()))
	if err != nil {
		return 0, err
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	// The appender writes within the connection's open transaction.
	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	inserted, skipped, err := appendPairs(conn, scanner, cols)
	if err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			s.logger.Warn("rollback ld load", zap.Error(rbErr))
		}
		return 0, err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return 0, fmt.Errorf("commit ld pairs: %w", err)
	}

	s.logger.Info("loaded ld pairs",
		zap.Int("pairs", inserted),
		zap.Int("skipped_interchromosomal", skipped))
	return inserted, nil
}

// appendPairs streams the data lines of an LD table into ld_pairs.
func appendPairs(conn *sql.Conn, scanner *bufio.Scanner, cols pairColumns) (inserted, skipped int, err error) {
	minCols := max(cols.chrA, cols.bpA, cols.snpA, cols.chrB, cols.bpB, cols.snpB, cols.r2, cols.dp)

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "ld_pairs")
		return err
	}); err != nil {
		return 0, 0, fmt.Errorf("create appender: %w", err)
	}
	defer func() {
		if cerr := appender.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("flush ld pairs: %w", cerr)
		}
	}()

	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) <= minCols {
			return 0, 0, fmt.Errorf("ld line %d: expected at least %d columns, found %d", line, minCols+1, len(fields))
		}

		chrA := variant.NormalizeChrom(fields[cols.chrA])
		if chrB := variant.NormalizeChrom(fields[cols.chrB]); chrA != chrB {
			skipped++
			continue
		}

		bpA, errA := strconv.ParseInt(fields[cols.bpA], 10, 64)
		bpB, errB := strconv.ParseInt(fields[cols.bpB], 10, 64)
		if errA != nil || errB != nil {
			return 0, 0, fmt.Errorf("ld line %d: invalid position", line)
		}
		r2, err := strconv.ParseFloat(fields[cols.r2], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("ld line %d: invalid R2 %q", line, fields[cols.r2])
		}
		var dp float64
		if cols.dp >= 0 {
			if dp, err = strconv.ParseFloat(fields[cols.dp], 64); err != nil {
				return 0, 0, fmt.Errorf("ld line %d: invalid DP %q", line, fields[cols.dp])
			}
		}

		if err := appender.AppendRow(chrA, bpA, fields[cols.snpA], bpB, fields[cols.snpB], r2, dp); err != nil {
			return 0, 0, fmt.Errorf("append ld pair: %w", err)
		}
		inserted++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("read ld file: %w", err)
	}
	return inserted, skipped, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.computePS != nil {
		s.computePS.Close()
	}
	return s.db.Close()
}
