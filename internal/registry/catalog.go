package registry

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/inodb/vibe-beacon/internal/beacon"
)

// ErrUnknownBeacon is returned for keys absent from the registry.
var ErrUnknownBeacon = errors.New("unknown beacon")

// Relative returns the form of docPath stored in the registry:
// slash-separated and relative to baseDir when possible.
func Relative(baseDir, docPath string) string {
	if rel, err := filepath.Rel(baseDir, docPath); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(docPath)
}

// Resolve maps a registry path back to a filesystem path under baseDir.
func Resolve(baseDir, regPath string) string {
	p := filepath.FromSlash(regPath)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Catalog gives read-only access to registered documents.
type Catalog struct {
	reg     *Registry
	baseDir string
}

// NewCatalog wraps reg; registry paths are resolved against baseDir.
func NewCatalog(reg *Registry, baseDir string) *Catalog {
	if baseDir == "" {
		baseDir = "."
	}
	return &Catalog{reg: reg, baseDir: baseDir}
}

// OpenCatalog loads the registry at path. Unlike Load, a missing or empty
// registry is an error, since there is nothing to read from.
func OpenCatalog(path, baseDir string) (*Catalog, error) {
	reg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("no beacon paths found in %s", path)
	}
	return NewCatalog(reg, baseDir), nil
}

// Keys returns the registered keys in numeric order.
func (c *Catalog) Keys() []string {
	return c.reg.Keys()
}

// Has reports whether key is registered.
func (c *Catalog) Has(key string) bool {
	_, ok := c.reg.Lookup(key)
	return ok
}

// Entries returns all registry entries.
func (c *Catalog) Entries() []Entry {
	return c.reg.Entries()
}

// Path returns the filesystem path of the document registered under key.
func (c *Catalog) Path(key string) (string, error) {
	p, ok := c.reg.Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBeacon, key)
	}
	return Resolve(c.baseDir, p), nil
}

// Document loads the document registered under key.
func (c *Catalog) Document(key string) (*beacon.Document, error) {
	path, err := c.Path(key)
	if err != nil {
		return nil, err
	}
	return beacon.ReadDocument(path)
}
