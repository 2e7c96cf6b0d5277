// Package assoc provides association result sets: the ranked variant table
// read from an association scan and annotated by LD clumping.
package assoc

import (
	"errors"
	"fmt"

	"github.com/inodb/ldclump/internal/variant"
)

// ErrMissingColumn is returned when a result set lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// ClumpStatus records the outcome of evaluating a record as a clump seed.
type ClumpStatus string

const (
	StatusPending ClumpStatus = ""
	StatusPass    ClumpStatus = "pass"
	StatusFail    ClumpStatus = "fail"
)

// Output annotation column names.
const (
	ColLDWith       = "ld_with"
	ColLDWithValues = "ld_with_values"
	ColFailedClump  = "failed_clump"
)

// Record is one row of an association result set.
type Record struct {
	Marker string
	Chrom  string
	Pos    int64
	PValue float64

	LDWith       string      // comma-joined markers removed in LD with this record
	LDWithValues string      // comma-joined r² values aligned with LDWith
	FailedClump  ClumpStatus // set when the record is evaluated as a seed

	// Fields holds the original input row, used to echo passthrough columns.
	Fields []string
}

// Key returns the chrom:pos key of the record.
func (r *Record) Key() string {
	return variant.PositionKey(r.Chrom, r.Pos)
}

// ResetAnnotations clears the clumping output columns.
func (r *Record) ResetAnnotations() {
	r.LDWith = ""
	r.LDWithValues = ""
	r.FailedClump = StatusPending
}

// ColumnNames maps the required fields to input column names.
type ColumnNames struct {
	Marker string
	Chrom  string
	Pos    string
	PValue string
}

// DefaultColumns returns the column names written by EPACTS.
func DefaultColumns() ColumnNames {
	return ColumnNames{
		Marker: "MARKER_ID",
		Chrom:  "#CHROM",
		Pos:    "BEGIN",
		PValue: "PVALUE",
	}
}

// ResultSet is an ordered table of association records.
type ResultSet struct {
	Columns ColumnNames
	Header  []string // original input header, empty for sets built in memory
	Records []*Record
}

// NewResultSet creates a result set over the given records with default columns.
func NewResultSet(records []*Record) *ResultSet {
	return &ResultSet{Columns: DefaultColumns(), Records: records}
}

// Len returns the number of records.
func (rs *ResultSet) Len() int {
	return len(rs.Records)
}

// Validate checks that the column metadata names every required column and,
// when a header is present, that the header contains them.
func (rs *ResultSet) Validate() error {
	required := []struct {
		field, name string
	}{
		{"marker", rs.Columns.Marker},
		{"chrom", rs.Columns.Chrom},
		{"pos", rs.Columns.Pos},
		{"pvalue", rs.Columns.PValue},
	}

	for _, req := range required {
		if req.name == "" {
			return fmt.Errorf("%w: no column configured for %s", ErrMissingColumn, req.field)
		}
		if len(rs.Header) > 0 && indexOf(rs.Header, req.name) < 0 {
			return fmt.Errorf("%w: %s column %q not in header", ErrMissingColumn, req.field, req.name)
		}
	}
	return nil
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
