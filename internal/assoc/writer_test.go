package assoc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/inodb/ldclump/internal/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_EchoesInputColumns(t *testing.T) {
	parser, err := NewParserFromReader(strings.NewReader(epactsSample), DefaultColumns())
	require.NoError(t, err)
	rs, err := parser.ReadAll()
	require.NoError(t, err)

	rs.Records[0].LDWith = "1:1500_C/T"
	rs.Records[0].LDWithValues = "0.90"
	rs.Records[0].FailedClump = StatusPass

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, rs).WriteAll(rs))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	header := strings.Split(lines[0], "\t")
	assert.Equal(t, "#CHROM", header[0])
	assert.Equal(t, []string{ColLDWith, ColLDWithValues, ColFailedClump}, header[len(header)-3:])

	first := strings.Split(lines[1], "\t")
	assert.Len(t, first, len(header))
	assert.Equal(t, "1:1000_A/G", first[3])
	assert.Equal(t, []string{"1:1500_C/T", "0.90", "pass"}, first[len(first)-3:])
}

func TestWriter_InMemoryResultSet(t *testing.T) {
	rs := NewResultSet([]*Record{
		{Marker: "rs1", Chrom: "1", Pos: 100, PValue: 1e-5, FailedClump: StatusFail},
	})

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, rs).WriteAll(rs))

	assert.Equal(t,
		"MARKER_ID\t#CHROM\tBEGIN\tPVALUE\tld_with\tld_with_values\tfailed_clump\n"+
			"rs1\t1\t100\t1e-05\t\t\tfail\n",
		buf.String())
}

func TestWriteFailed(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFailed(&buf, []variant.FailedVariant{
		{Name: "1:1000_AT/A", Chrom: "1", Pos: 1000},
		{Name: "rs99", Chrom: "X", Pos: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "MARKER_ID\tCHROM\tPOS\n1:1000_AT/A\t1\t1000\nrs99\tX\t5\n", buf.String())
}

func TestFormatSummary(t *testing.T) {
	records := []*Record{
		{Marker: "b", Chrom: "2", Pos: 10, PValue: 1e-9},
		{Marker: "a", Chrom: "1", Pos: 20, PValue: 0.001},
	}

	out := FormatSummary(records, DefaultColumns())
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "MARKER_ID"))
	assert.True(t, strings.HasPrefix(lines[1], "a "))
	assert.True(t, strings.HasPrefix(lines[2], "b "))
	assert.Equal(t, "b", records[0].Marker, "input order untouched")
}
