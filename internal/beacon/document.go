package beacon

import (
	"bufio"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// ReadDocument loads a Beacon document from path.
func ReadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open beacon document: %w", err)
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode beacon document %s: %w", path, err)
	}
	return &doc, nil
}

// WriteDocument serializes doc as indented JSON to path.
// A partially written file is removed on failure.
func WriteDocument(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create beacon document: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode beacon document: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("flush beacon document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close beacon document: %w", err)
	}
	return nil
}
