// Package ld provides pairwise linkage-disequilibrium lookups around a seed
// variant, backed either by memory or by a DuckDB reference table.
package ld

import (
	"github.com/inodb/ldclump/internal/variant"
)

// Pair holds the LD statistics between a seed and one other variant.
type Pair struct {
	DPrime   float64
	RSquared float64
}

// Finder computes LD between a seed variant and the variants in a window
// around it. Compute replaces the current results; Lookup reads them.
type Finder interface {
	// Compute populates results for seedKey ("chrom:pos") against the variants
	// of chrom in [start, end]. It returns false when LD cannot be determined
	// for the seed, e.g. when no reference pair falls inside the window. An
	// error is only returned when the underlying data source fails.
	Compute(seedKey, chrom string, start, end int64, threshold float64) (bool, error)

	// Lookup returns the LD between the last computed seed and the variant
	// at key ("chrom:pos").
	Lookup(key string) (Pair, bool)
}

// Results holds LD values keyed by "chrom:pos".
type Results map[string]Pair

// MemFinder serves LD from an in-memory table of pairs. Pairs are symmetric:
// adding a-b also answers b-a.
type MemFinder struct {
	pairs   map[string]map[string]Pair
	chroms  map[string]string // key -> chrom
	pos     map[string]int64  // key -> pos
	results Results
}

// NewMemFinder creates an empty in-memory finder.
func NewMemFinder() *MemFinder {
	return &MemFinder{
		pairs:  make(map[string]map[string]Pair),
		chroms: make(map[string]string),
		pos:    make(map[string]int64),
	}
}

// Add records LD between two variants on the same chromosome.
func (f *MemFinder) Add(chrom string, pos1, pos2 int64, p Pair) {
	k1 := variant.PositionKey(chrom, pos1)
	k2 := variant.PositionKey(chrom, pos2)
	f.link(k1, k2, chrom, pos2, p)
	f.link(k2, k1, chrom, pos1, p)
}

func (f *MemFinder) link(from, to, chrom string, pos int64, p Pair) {
	m, ok := f.pairs[from]
	if !ok {
		m = make(map[string]Pair)
		f.pairs[from] = m
	}
	m[to] = p
	f.chroms[to] = chrom
	f.pos[to] = pos
}

// Compute implements Finder. It fails when the seed has no recorded pairs
// within the window.
func (f *MemFinder) Compute(seedKey, chrom string, start, end int64, threshold float64) (bool, error) {
	f.results = make(Results)
	for key, p := range f.pairs[seedKey] {
		if f.chroms[key] != chrom || f.pos[key] < start || f.pos[key] > end {
			continue
		}
		f.results[key] = p
	}
	return len(f.results) > 0, nil
}

// Lookup implements Finder.
func (f *MemFinder) Lookup(key string) (Pair, bool) {
	p, ok := f.results[key]
	return p, ok
}
