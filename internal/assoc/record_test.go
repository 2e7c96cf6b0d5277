package assoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultSet_Validate(t *testing.T) {
	rs := NewResultSet(nil)
	assert.NoError(t, rs.Validate())

	rs.Header = []string{"#CHROM", "BEGIN", "MARKER_ID", "PVALUE"}
	assert.NoError(t, rs.Validate())

	rs.Header = []string{"#CHROM", "BEGIN", "MARKER_ID"}
	err := rs.Validate()
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "PVALUE")

	rs = NewResultSet(nil)
	rs.Columns.Chrom = ""
	assert.ErrorIs(t, rs.Validate(), ErrMissingColumn)
}

func TestRecord_ResetAnnotations(t *testing.T) {
	r := &Record{Marker: "m", Chrom: "1", Pos: 5, LDWith: "x", LDWithValues: "0.50", FailedClump: StatusPass}
	r.ResetAnnotations()
	assert.Empty(t, r.LDWith)
	assert.Empty(t, r.LDWithValues)
	assert.Equal(t, StatusPending, r.FailedClump)
	assert.Equal(t, "1:5", r.Key())
}
