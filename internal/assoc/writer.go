package assoc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/inodb/ldclump/internal/variant"
)

// Writer writes clumped association results in tab-delimited format: the
// input columns followed by the clumping annotation columns.
type Writer struct {
	w       *bufio.Writer
	columns []string
	echo    bool // records carry the full input row
}

// NewWriter creates a new tab-delimited writer for records of rs.
// Input columns are echoed when rs was read from a file.
func NewWriter(w io.Writer, rs *ResultSet) *Writer {
	tw := &Writer{w: bufio.NewWriter(w)}
	if len(rs.Header) > 0 {
		tw.columns = append(tw.columns, rs.Header...)
		tw.echo = true
	} else {
		tw.columns = []string{rs.Columns.Marker, rs.Columns.Chrom, rs.Columns.Pos, rs.Columns.PValue}
	}
	tw.columns = append(tw.columns, ColLDWith, ColLDWithValues, ColFailedClump)
	return tw
}

// WriteHeader writes the header line.
func (tw *Writer) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single record.
func (tw *Writer) Write(r *Record) error {
	var values []string
	if tw.echo && len(r.Fields) > 0 {
		values = append(values, r.Fields...)
	} else {
		values = []string{
			r.Marker,
			r.Chrom,
			strconv.FormatInt(r.Pos, 10),
			strconv.FormatFloat(r.PValue, 'g', -1, 64),
		}
	}
	values = append(values, r.LDWith, r.LDWithValues, string(r.FailedClump))

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAll writes the header followed by every record of rs and flushes.
func (tw *Writer) WriteAll(rs *ResultSet) error {
	if err := tw.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rs.Records {
		if err := tw.Write(r); err != nil {
			return fmt.Errorf("write record %s: %w", r.Marker, err)
		}
	}
	return tw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (tw *Writer) Flush() error {
	return tw.w.Flush()
}

// WriteFailed writes variants that could not be clumped as a
// tab-delimited table with a MARKER_ID, CHROM, POS header.
func WriteFailed(w io.Writer, failed []variant.FailedVariant) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("MARKER_ID\tCHROM\tPOS\n"); err != nil {
		return err
	}
	for _, f := range failed {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%d\n", f.Name, f.Chrom, f.Pos); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FormatSummary renders the marker, p-value, chromosome and position of
// each record as an aligned table, in genomic order. records is not modified.
func FormatSummary(records []*Record, names ColumnNames) string {
	sorted := make([]*Record, len(records))
	copy(sorted, records)
	SortGenome(sorted)

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", names.Marker, names.PValue, names.Chrom, names.Pos)
	for _, r := range sorted {
		fmt.Fprintf(tw, "%s\t%g\t%s\t%d\n", r.Marker, r.PValue, r.Chrom, r.Pos)
	}
	tw.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
