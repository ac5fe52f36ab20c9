// Package vcf provides streaming VCF parsing into Beacon datasets.
package vcf

import "github.com/inodb/vibe-beacon/internal/beacon"

// VariantParser is the interface for parsers that read variants.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*beacon.Variant, error)

	// Close closes the parser and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// LineReader yields one line at a time with the terminator removed.
// It returns io.EOF once the source is exhausted.
type LineReader interface {
	ReadLine() (string, error)
}
