// Package compare finds the variants shared by two Beacon documents.
package compare

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/inodb/vibe-beacon/internal/beacon"
	"github.com/inodb/vibe-beacon/internal/registry"
)

// Variant is a variant keyed for comparison, alleles joined by commas.
type Variant struct {
	Chromosome     string `json:"chromosome"`
	Position       int64  `json:"position"`
	ReferenceBases string `json:"referenceBases"`
	AlternateBases string `json:"alternateBases"`
}

// Set maps chromosome-position-reference keys to variants.
type Set map[string]Variant

// Keys returns the keys of s in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Index keys every variant of doc. A later variant with the same key
// replaces an earlier one.
func Index(doc *beacon.Document) Set {
	s := make(Set)
	for i := range doc.Datasets {
		for j := range doc.Datasets[i].Variants {
			v := &doc.Datasets[i].Variants[j]
			s[v.Key()] = Variant{
				Chromosome:     v.Chromosome,
				Position:       v.Position,
				ReferenceBases: v.ReferenceBases,
				AlternateBases: v.AltString(),
			}
		}
	}
	return s
}

// Common returns the entries of a whose key is present in b with identical
// alternate alleles.
func Common(a, b Set) Set {
	out := make(Set)
	for k, v := range a {
		if w, ok := b[k]; ok && w.AlternateBases == v.AlternateBases {
			out[k] = v
		}
	}
	return out
}

// Comparer finds the common variants of two registered beacons.
type Comparer interface {
	CommonVariants(keyA, keyB string) (Set, error)
}

// DocumentComparer compares the JSON documents listed in a catalog.
type DocumentComparer struct {
	Catalog *registry.Catalog
}

// CommonVariants loads both documents and intersects them.
func (c DocumentComparer) CommonVariants(keyA, keyB string) (Set, error) {
	if !c.Catalog.Has(keyA) || !c.Catalog.Has(keyB) {
		return nil, fmt.Errorf("%w: %s, %s", registry.ErrUnknownBeacon, keyA, keyB)
	}

	a, err := c.Catalog.Document(keyA)
	if err != nil {
		return nil, err
	}
	b, err := c.Catalog.Document(keyB)
	if err != nil {
		return nil, err
	}
	return Common(Index(a), Index(b)), nil
}

// FileName returns the output file name for a comparison of keyA and keyB.
func FileName(keyA, keyB string) string {
	return fmt.Sprintf("common_variants_%s_%s.json", keyA, keyB)
}

// ErrNoCommonVariants is returned by Write when there is nothing to write.
var ErrNoCommonVariants = errors.New("no common variants found")

// Write stores common as a JSON object keyed by variant key in dir.
// No file is created when common is empty.
func Write(dir, keyA, keyB string, common Set) (string, error) {
	if len(common) == 0 {
		return "", ErrNoCommonVariants
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(common, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode common variants: %w", err)
	}

	path := filepath.Join(dir, FileName(keyA, keyB))
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write common variants: %w", err)
	}
	return path, nil
}
