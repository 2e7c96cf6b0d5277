package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/ldclump/internal/assoc"
	"github.com/inodb/ldclump/internal/clump"
	"github.com/inodb/ldclump/internal/ld"
	"github.com/inodb/ldclump/internal/variant"
)

// Run is one clumping run over an input file.
type Run struct {
	ID        string
	CreatedAt time.Time
	Input     FileFingerprint
	Options   clump.Options
	Result    *clump.Result
}

// NewRun wraps a clumping result with a fresh run ID.
func NewRun(result *clump.Result, opts clump.Options, input FileFingerprint) *Run {
	return &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Input:     input,
		Options:   opts,
		Result:    result,
	}
}

// RunInfo summarizes a stored run.
type RunInfo struct {
	ID        string
	CreatedAt time.Time
	InputPath string
	Threshold float64
	Window    int64
	Seeds     int64
	Failed    int64
}

// WriteRun stores a run: its metadata, its seeds, the members removed with
// each seed, and its failed variants. The run is written in one transaction,
// so a failed write leaves nothing behind.
func (s *Store) WriteRun(run *Run) error {
	res := run.Result
	if res == nil || res.Set == nil {
		return fmt.Errorf("run %s has no result", run.ID)
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	// Appenders write within the connection's open transaction.
	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := writeRun(ctx, conn, run); err != nil {
		conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func writeRun(ctx context.Context, conn *sql.Conn, run *Run) error {
	res := run.Result

	if err := appendTo(conn, "clump_results", func(a *goduckdb.Appender) error {
		for _, r := range res.Set.Records {
			if err := a.AppendRow(run.ID, r.Marker, r.Chrom, r.Pos, r.PValue,
				r.LDWith, r.LDWithValues, string(r.FailedClump)); err != nil {
				return fmt.Errorf("append seed %s: %w", r.Marker, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := appendTo(conn, "clump_members", func(a *goduckdb.Appender) error {
		for _, c := range res.Clumps {
			for i, m := range c.Members {
				r := m.Record
				if err := a.AppendRow(run.ID, c.Seed.Marker, int32(i), r.Marker, r.Chrom, r.Pos, r.PValue,
					m.LD.RSquared, m.LD.DPrime); err != nil {
					return fmt.Errorf("append member %s: %w", r.Marker, err)
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := appendTo(conn, "clump_failures", func(a *goduckdb.Appender) error {
		for i, f := range res.Failed {
			if err := a.AppendRow(run.ID, int32(i), f.Name, f.Chrom, f.Pos); err != nil {
				return fmt.Errorf("append failure %s: %w", f.Name, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, `INSERT INTO clump_runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Input.Path, run.Input.Size, run.Input.ModTime,
		run.Options.Threshold, run.Options.Window,
		int64(len(res.Set.Records)), int64(len(res.Failed)),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// appendTo runs fill against an appender for table and flushes it.
func appendTo(conn *sql.Conn, table string, fill func(*goduckdb.Appender) error) error {
	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create %s appender: %w", table, err)
	}
	if err := fill(appender); err != nil {
		appender.Close()
		return err
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", table, err)
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]RunInfo, error) {
	rows, err := s.db.Query(`SELECT run_id, created_at, input_path, threshold, window_bp, seeds, failed
		FROM clump_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var ri RunInfo
		if err := rows.Scan(&ri.ID, &ri.CreatedAt, &ri.InputPath, &ri.Threshold, &ri.Window, &ri.Seeds, &ri.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Seeds returns the seeds of a run in genomic order.
func (s *Store) Seeds(runID string) ([]*assoc.Record, error) {
	rows, err := s.db.Query(`SELECT marker, chrom, pos, pvalue, ld_with, ld_with_values, failed_clump
		FROM clump_results WHERE run_id=?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query seeds: %w", err)
	}
	defer rows.Close()

	var seeds []*assoc.Record
	for rows.Next() {
		var r assoc.Record
		var status string
		if err := rows.Scan(&r.Marker, &r.Chrom, &r.Pos, &r.PValue, &r.LDWith, &r.LDWithValues, &status); err != nil {
			return nil, fmt.Errorf("scan seed: %w", err)
		}
		r.FailedClump = assoc.ClumpStatus(status)
		seeds = append(seeds, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seeds: %w", err)
	}

	assoc.SortGenome(seeds)
	return seeds, nil
}

// LookupSeed returns the seed that absorbed marker in a run: the marker's own
// row if it was a seed, otherwise the seed it was removed with. found is
// false if the marker is not part of the run.
func (s *Store) LookupSeed(runID, marker string) (seed string, found bool, err error) {
	err = s.db.QueryRow(`SELECT marker FROM clump_results WHERE run_id=? AND marker=?
		UNION ALL
		SELECT seed_marker FROM clump_members WHERE run_id=? AND marker=?
		LIMIT 1`, runID, marker, runID, marker).Scan(&seed)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup seed for %s: %w", marker, err)
	}
	return seed, true, nil
}

// Members returns the variants removed with seedMarker in a run, in the order
// they were recorded.
func (s *Store) Members(runID, seedMarker string) ([]clump.Member, error) {
	rows, err := s.db.Query(`SELECT marker, chrom, pos, pvalue, rsq, dprime
		FROM clump_members WHERE run_id=? AND seed_marker=?
		ORDER BY member_idx`, runID, seedMarker)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []clump.Member
	for rows.Next() {
		var r assoc.Record
		var p ld.Pair
		if err := rows.Scan(&r.Marker, &r.Chrom, &r.Pos, &r.PValue, &p.RSquared, &p.DPrime); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, clump.Member{Record: &r, LD: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// Failures returns the variants of a run that could not be clumped, in the
// order their seeds were evaluated.
func (s *Store) Failures(runID string) ([]variant.FailedVariant, error) {
	rows, err := s.db.Query(`SELECT marker, chrom, pos FROM clump_failures
		WHERE run_id=? ORDER BY fail_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failed []variant.FailedVariant
	for rows.Next() {
		var f variant.FailedVariant
		if err := rows.Scan(&f.Name, &f.Chrom, &f.Pos); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failed = append(failed, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failed, nil
}
