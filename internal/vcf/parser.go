// Package vcf provides streaming VCF parsing into Beacon datasets.
package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/vibe-beacon/internal/beacon"
)

// Number of fixed columns before the first sample column on the #CHROM line.
const fixedColumns = 9

// Minimum number of tab-separated fields for a data line to be accepted.
const minDataFields = 5

// Header holds the metadata extracted from VCF header lines.
type Header struct {
	AssemblyID  string // from ##assembly=, empty if absent
	Description string // GT FORMAT description, empty if absent
	SampleCount int    // sample columns on the #CHROM line
	HasColumns  bool   // whether a #CHROM line was seen
}

// Parser reads variants from a VCF file.
type Parser struct {
	lines      LineReader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	skipped    int
	header     Header
}

// bufferedLines is the LineReader shared by plain and gzip sources.
type bufferedLines struct {
	r *bufio.Reader
}

func (b *bufferedLines) ReadLine() (string, error) {
	line, err := b.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// IsCompressed reports whether path names a gzip-compressed source.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// NewParser opens the VCF file at path.
// Files ending in .gz are decompressed; the choice is made once here.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{file: file}

	var src io.Reader = file
	if IsCompressed(path) {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		src = p.gzipReader
	}
	p.lines = &bufferedLines{r: bufio.NewReaderSize(src, 1<<20)}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
// The reader is consumed as plain text.
func NewParserFromReader(r io.Reader) *Parser {
	return &Parser{
		lines: &bufferedLines{r: bufio.NewReader(r)},
	}
}

// Next reads the next variant from the VCF file.
// Header lines encountered along the way update Header; data lines with
// fewer than five columns are skipped.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*beacon.Variant, error) {
	for {
		line, err := p.lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("read line %d: %w", p.lineNumber+1, err)
		}
		p.lineNumber++

		if line == "" {
			continue
		}
		if line[0] == '#' {
			p.parseHeaderLine(line)
			continue
		}

		v, ok, err := p.parseLine(line)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.skipped++
			continue
		}
		return v, nil
	}
}

// parseHeaderLine applies the header extraction rules to one # line.
// The first assembly and GT description found are kept.
func (p *Parser) parseHeaderLine(line string) {
	if p.header.AssemblyID == "" {
		if id, ok := assemblyToken(line); ok {
			p.header.AssemblyID = id
		}
	}

	if p.header.Description == "" && strings.HasPrefix(line, "##FORMAT=<ID=GT") {
		if desc, ok := quotedDescription(line); ok {
			p.header.Description = desc
		}
	}

	if !p.header.HasColumns && strings.HasPrefix(line, "#CHROM") {
		fields := strings.Split(strings.TrimRight(line, " \t"), "\t")
		p.header.HasColumns = true
		p.header.SampleCount = max(len(fields)-fixedColumns, 0)
	}
}

// assemblyToken extracts the non-whitespace token after "##assembly=".
func assemblyToken(line string) (string, bool) {
	const marker = "##assembly="
	i := strings.Index(line, marker)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(marker):]
	if end := strings.IndexAny(rest, " \t"); end >= 0 {
		rest = rest[:end]
	}
	return rest, rest != ""
}

// quotedDescription extracts the text of a Description="..." attribute.
func quotedDescription(line string) (string, bool) {
	const marker = `Description="`
	i := strings.Index(line, marker)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}

// parseLine parses a single VCF data line into a Variant.
// Surrounding whitespace is trimmed before fields are counted.
// ok is false for malformed lines that should be skipped.
func (p *Parser) parseLine(line string) (v *beacon.Variant, ok bool, err error) {
	fields := strings.SplitN(strings.TrimSpace(line), "\t", minDataFields+1)
	if len(fields) < minDataFields {
		return nil, false, nil
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, false, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %q", fields[1]),
		}
	}

	return &beacon.Variant{
		Chromosome:     fields[0],
		Position:       pos,
		VariantID:      fields[2],
		ReferenceBases: fields[3],
		AlternateBases: strings.Split(fields[4], ","),
	}, true, nil
}

// Header returns the metadata collected from header lines read so far.
func (p *Parser) Header() Header {
	return p.header
}

// Skipped returns the number of malformed data lines skipped so far.
func (p *Parser) Skipped() int {
	return p.skipped
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the decompressor and the underlying file.
// It returns the first error encountered.
func (p *Parser) Close() error {
	var err error
	if p.gzipReader != nil {
		err = p.gzipReader.Close()
	}
	if p.file != nil {
		if ferr := p.file.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
