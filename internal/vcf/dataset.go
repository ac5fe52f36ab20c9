package vcf

import (
	"path/filepath"
	"strings"

	"github.com/inodb/vibe-beacon/internal/beacon"
)

// Recognized VCF file extensions, longest first.
var extensions = []string{".vcf.gz", ".vcf"}

// HasVCFExtension reports whether name ends in a recognized VCF extension.
func HasVCFExtension(name string) bool {
	_, ok := trimExtension(name)
	return ok
}

// Stem returns the base name of path with its VCF extension removed.
func Stem(path string) string {
	base := filepath.Base(path)
	if stem, ok := trimExtension(base); ok {
		return stem
	}
	return base
}

func trimExtension(name string) (string, bool) {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return name, false
}

// ReadDataset drains p into a dataset identified by id.
// Header fields missing from the source take their values from d.
func ReadDataset(p VariantParser, id string, d beacon.Defaults) (*beacon.Dataset, error) {
	ds := &beacon.Dataset{
		ID:       id,
		Variants: []beacon.Variant{},
	}

	for {
		v, err := p.Next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			break
		}
		ds.AddVariant(*v)
	}

	var h Header
	if hp, ok := p.(interface{ Header() Header }); ok {
		h = hp.Header()
	}

	ds.AssemblyID = h.AssemblyID
	if ds.AssemblyID == "" {
		ds.AssemblyID = d.AssemblyID
	}
	ds.Description = h.Description
	if ds.Description == "" {
		ds.Description = d.Description
	}
	ds.SampleCount = h.SampleCount

	return ds, nil
}

// ParseFile converts the VCF file at path into a dataset named after its stem.
// The file and any decompression layer are closed before returning.
func ParseFile(path string, d beacon.Defaults) (*beacon.Dataset, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	return ReadDataset(p, Stem(path), d)
}
