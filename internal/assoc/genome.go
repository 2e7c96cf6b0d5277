package assoc

import (
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/ldclump/internal/variant"
)

// Ranks for the non-numbered human chromosomes, after autosomes 1-22.
const (
	rankX = 23 + iota
	rankY
	rankXY
	rankMT
	rankOther
)

// ChromRank returns the position of a chromosome in karyotype order:
// autosomes numerically, then X, Y, XY (pseudo-autosomal) and MT.
// Unrecognised contigs share the last rank and are ordered by name.
func ChromRank(chrom string) int {
	c := strings.ToUpper(variant.NormalizeChrom(chrom))
	switch c {
	case "X", "23":
		return rankX
	case "Y", "24":
		return rankY
	case "XY", "25":
		return rankXY
	case "M", "MT", "26":
		return rankMT
	}
	if n, err := strconv.Atoi(c); err == nil && n >= 1 && n <= 22 {
		return n
	}
	return rankOther
}

// chromLess orders two chromosome names in karyotype order.
func chromLess(a, b string) bool {
	ra, rb := ChromRank(a), ChromRank(b)
	if ra != rb {
		return ra < rb
	}
	if ra == rankOther {
		return variant.NormalizeChrom(a) < variant.NormalizeChrom(b)
	}
	return false
}

// SortGenome orders records by chromosome in karyotype order, then by
// position. The sort is stable, so applying it twice is the same as once.
func SortGenome(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if chromLess(a.Chrom, b.Chrom) {
			return true
		}
		if chromLess(b.Chrom, a.Chrom) {
			return false
		}
		return a.Pos < b.Pos
	})
}

// SortByPValue orders records by ascending p-value, keeping input order for ties.
func SortByPValue(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PValue < records[j].PValue
	})
}
