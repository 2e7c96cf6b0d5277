// Package clump implements greedy LD clumping of association results: the
// most significant remaining variant seeds a clump, variants in LD with it
// inside a window are removed, and the process repeats on what is left.
package clump

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/ldclump/internal/assoc"
	"github.com/inodb/ldclump/internal/ld"
	"github.com/inodb/ldclump/internal/variant"
)

// Default clumping parameters.
const (
	DefaultThreshold = 0.1
	DefaultWindow    = 1_000_000
)

// Options configures a clumping run.
type Options struct {
	Threshold float64 // minimum r² for a variant to join a seed's clump
	Window    int64   // half-width in bp of the region searched around a seed
}

// DefaultOptions returns r² >= 0.1 within ±1 Mb.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Window: DefaultWindow}
}

// Validate checks that the threshold is in (0, 1] and the window is positive.
func (o Options) Validate() error {
	if !(o.Threshold > 0 && o.Threshold <= 1) {
		return fmt.Errorf("ld threshold must be in (0, 1], got %g", o.Threshold)
	}
	if o.Window <= 0 {
		return fmt.Errorf("ld window must be positive, got %d", o.Window)
	}
	return nil
}

// Member is a variant removed from the pool because of its LD with a seed.
type Member struct {
	Record *assoc.Record
	LD     ld.Pair
}

// Clump is a seed and the members removed in its iteration. Failed seeds
// have no members.
type Clump struct {
	Seed    *assoc.Record
	Members []Member
}

// Result is the outcome of a clumping run.
type Result struct {
	Set    *assoc.ResultSet        // seeds only, in genomic order
	Failed []variant.FailedVariant // seeds whose LD could not be determined
	Clumps []Clump                 // one per seed, in the order seeds were chosen
}

// Engine runs LD clumping against an LD finder.
type Engine struct {
	finder ld.Finder
	opts   Options
	diag   Diagnostics
	logger *zap.Logger
}

// NewEngine creates a clumping engine.
func NewEngine(f ld.Finder, opts Options) (*Engine, error) {
	if f == nil {
		return nil, errors.New("ld finder is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		finder: f,
		opts:   opts,
		diag:   nopDiagnostics{},
		logger: zap.NewNop(),
	}, nil
}

// SetDiagnostics sets the sink for progress and warning messages.
func (e *Engine) SetDiagnostics(d Diagnostics) {
	e.diag = d
}

// SetLogger sets the logger for debug output.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Clump clumps rs in place. On return rs holds only the seeds, annotated
// and in genomic order; each removed variant is listed in its seed's LDWith.
// Variants whose LD could not be determined are returned in Result.Failed.
// Only structural problems with rs and finder I/O failures return an error.
func (e *Engine) Clump(rs *assoc.ResultSet) (*Result, error) {
	if rs == nil {
		return nil, errors.New("nil result set")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	records := rs.Records
	assoc.SortByPValue(records)
	for _, r := range records {
		r.ResetAnnotations()
	}

	e.diag.Progress(fmt.Sprintf("Starting with significant %d SNPs:\n%s\n",
		rs.Len(), assoc.FormatSummary(records, rs.Columns)))

	// active holds indices into records still in the pool, in p-value order.
	active := make([]int, len(records))
	for i := range active {
		active[i] = i
	}

	res := &Result{Failed: []variant.FailedVariant{}}
	seeds := make([]*assoc.Record, 0, len(records))

	for len(active) > 0 {
		seed := records[active[0]]
		seeds = append(seeds, seed)
		e.diag.Progress("Working on LD clumping variant " + seed.Marker)

		ok, err := e.computeSeed(seed)
		if err != nil {
			return nil, fmt.Errorf("compute ld for %s at %s: %w", seed.Marker, seed.Key(), err)
		}

		if !ok {
			res.Failed = append(res.Failed, variant.FailedVariant{
				Name:  seed.Marker,
				Chrom: seed.Chrom,
				Pos:   seed.Pos,
			})
			seed.FailedClump = assoc.StatusFail
			e.diag.Warning(fmt.Sprintf("could not calculate LD for variant %s at %s", seed.Marker, seed.Key()))
			res.Clumps = append(res.Clumps, Clump{Seed: seed})
			active = active[1:]
			continue
		}

		c := Clump{Seed: seed}
		kept := active[:0]
		for _, idx := range active[1:] {
			r := records[idx]
			if m, ok := e.inLD(r); ok {
				c.Members = append(c.Members, m)
				continue
			}
			kept = append(kept, idx)
		}
		active = kept

		annotatePass(seed, c.Members)
		res.Clumps = append(res.Clumps, c)

		e.logger.Debug("clumped variant",
			zap.String("marker", seed.Marker),
			zap.String("chrom", seed.Chrom),
			zap.Int64("pos", seed.Pos),
			zap.Int("removed", len(c.Members)),
			zap.Int("remaining", len(active)))
	}

	assoc.SortGenome(seeds)
	rs.Records = seeds
	res.Set = rs
	return res, nil
}

// computeSeed asks the finder for LD around seed. Confirmed non-SNP seeds
// are not computed: LD against indels is unreliable.
func (e *Engine) computeSeed(seed *assoc.Record) (bool, error) {
	if variant.Classify(seed.Marker) == variant.ClassNonSNP {
		e.diag.Warning(fmt.Sprintf("skipping LD calculation for non-SNP variant %s at %s", seed.Marker, seed.Key()))
		return false, nil
	}
	return e.finder.Compute(seed.Key(), seed.Chrom, seed.Pos-e.opts.Window, seed.Pos+e.opts.Window, e.opts.Threshold)
}

// inLD reports whether r is correlated with the current seed at or above the
// threshold. Confirmed non-SNPs and variants without LD data stay in the pool.
func (e *Engine) inLD(r *assoc.Record) (Member, bool) {
	if variant.Classify(r.Marker) == variant.ClassNonSNP {
		return Member{}, false
	}
	p, ok := e.finder.Lookup(r.Key())
	if !ok || p.RSquared < e.opts.Threshold {
		return Member{}, false
	}
	return Member{Record: r, LD: p}, true
}

// annotatePass records the removed members on the seed.
func annotatePass(seed *assoc.Record, members []Member) {
	names := make([]string, len(members))
	values := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Record.Marker
		values[i] = strconv.FormatFloat(m.LD.RSquared, 'f', 2, 64)
	}
	seed.LDWith = strings.Join(names, ",")
	seed.LDWithValues = strings.Join(values, ",")
	seed.FailedClump = assoc.StatusPass
}
