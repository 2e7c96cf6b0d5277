// Package variant provides variant identity helpers shared by the clumping
// packages: position keys, chromosome normalization and marker classification.
package variant

import (
	"strconv"
	"strings"
)

// FailedVariant identifies a variant whose LD could not be determined when it
// was evaluated as a clump seed.
type FailedVariant struct {
	Name  string // Marker identifier as it appeared in the input
	Chrom string // Chromosome name (e.g., "12", "chr12")
	Pos   int64  // 1-based genomic position
}

// Key returns the chrom:pos key of the failed variant.
func (f FailedVariant) Key() string {
	return PositionKey(f.Chrom, f.Pos)
}

// PositionKey formats the "chrom:pos" key used to address LD results.
func PositionKey(chrom string, pos int64) string {
	return chrom + ":" + strconv.FormatInt(pos, 10)
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}
