package assoc

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// ColumnIndices holds the indices of the required columns.
type ColumnIndices struct {
	Marker int
	Chrom  int
	Pos    int
	PValue int
}

// Parser reads association results from a delimited text file such as the
// output of EPACTS. Columns are tab-separated; if the header has no tabs,
// runs of whitespace separate columns instead (PLINK style).
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	names      ColumnNames
	columns    ColumnIndices
	header     []string
	whitespace bool
	maxPValue  float64
	skipped    int
	logger     *zap.Logger
}

// NewParser creates a new association result parser for the given file.
// Supports both plain and gzipped files.
func NewParser(path string, names ColumnNames) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin, names)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open association file: %w", err)
	}

	p := newParser(names)
	p.file = file

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read association header: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek association file: %w", err)
	}

	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader, names ColumnNames) (*Parser, error) {
	p := newParser(names)
	p.reader = bufio.NewReader(r)

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

func newParser(names ColumnNames) *Parser {
	return &Parser{
		names:     names,
		maxPValue: math.Inf(1),
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger for skipped-row warnings.
func (p *Parser) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetMaxPValue drops records with a p-value above limit. Use it to clump only
// variants passing a significance threshold.
func (p *Parser) SetMaxPValue(limit float64) {
	p.maxPValue = limit
}

// parseHeader reads the first non-comment line as the header. Lines starting
// with "##" are metadata; a single "#" may prefix the header (EPACTS writes
// "#CHROM" as its first column name).
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{
					Line:    p.lineNumber,
					Message: "no header line found",
				}
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "##") {
			continue
		}

		p.whitespace = !strings.Contains(line, "\t")
		p.header = p.split(line)
		return p.parseColumnIndices()
	}
}

// parseColumnIndices locates the required columns in the header.
func (p *Parser) parseColumnIndices() error {
	p.columns = ColumnIndices{
		Marker: indexOf(p.header, p.names.Marker),
		Chrom:  indexOf(p.header, p.names.Chrom),
		Pos:    indexOf(p.header, p.names.Pos),
		PValue: indexOf(p.header, p.names.PValue),
	}

	required := []struct {
		idx  int
		name string
	}{
		{p.columns.Marker, p.names.Marker},
		{p.columns.Chrom, p.names.Chrom},
		{p.columns.Pos, p.names.Pos},
		{p.columns.PValue, p.names.PValue},
	}
	for _, req := range required {
		if req.idx == -1 {
			return &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("required column '%s' not found in header", req.name),
				Err:     ErrMissingColumn,
			}
		}
	}

	return nil
}

func (p *Parser) split(line string) []string {
	if p.whitespace {
		return strings.Fields(line)
	}
	return strings.Split(line, "\t")
}

// Next reads the next record.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read record line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r, ok, err := p.parseLine(line)
		if err != nil {
			return nil, err
		}
		if ok {
			return r, nil
		}
	}
}

// parseLine parses a single data line. ok is false for rows that are
// skipped: missing p-values ("NA" in EPACTS output) or rows above the
// configured p-value limit.
func (p *Parser) parseLine(line string) (*Record, bool, error) {
	fields := p.split(line)

	minCols := max(p.columns.Marker, p.columns.Chrom, p.columns.Pos, p.columns.PValue)
	if len(fields) <= minCols {
		return nil, false, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", minCols+1, len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[p.columns.Pos], 10, 64)
	if err != nil {
		return nil, false, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[p.columns.Pos]),
		}
	}

	marker := fields[p.columns.Marker]
	pval, err := strconv.ParseFloat(fields[p.columns.PValue], 64)
	if err != nil || math.IsNaN(pval) {
		p.skipped++
		p.logger.Warn("skipping record without p-value",
			zap.String("marker", marker),
			zap.String("pvalue", fields[p.columns.PValue]),
			zap.Int("line", p.lineNumber))
		return nil, false, nil
	}
	if pval > p.maxPValue {
		p.skipped++
		return nil, false, nil
	}

	return &Record{
		Marker: marker,
		Chrom:  fields[p.columns.Chrom],
		Pos:    pos,
		PValue: pval,
		Fields: fields,
	}, true, nil
}

// ReadAll reads all remaining records into a result set.
func (p *Parser) ReadAll() (*ResultSet, error) {
	rs := &ResultSet{
		Columns: p.names,
		Header:  p.header,
	}
	for {
		r, err := p.Next()
		if err != nil {
			return nil, err
		}
		if r == nil {
			break
		}
		rs.Records = append(rs.Records, r)
	}
	return rs, nil
}

// Header returns the parsed header columns.
func (p *Parser) Header() []string {
	return p.header
}

// Columns returns the parsed column indices.
func (p *Parser) Columns() ColumnIndices {
	return p.columns
}

// Skipped returns the number of data rows dropped so far.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during association file parsing with line context.
type ParseError struct {
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("association parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
