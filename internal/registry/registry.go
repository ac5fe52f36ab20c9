// Package registry maintains the persistent mapping from beacon keys
// (beacon1, beacon2, ...) to Beacon document paths.
//
// The registry is append-only: a path is registered at most once and an
// existing key is never reassigned. It is loaded once, mutated in memory,
// and persisted with an atomic replace.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// KeyPrefix is the prefix of every generated beacon key.
const KeyPrefix = "beacon"

// Registry maps beacon keys to document paths.
type Registry struct {
	paths  map[string]string // key -> path
	byPath map[string]string // path -> key
	next   int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		paths:  make(map[string]string),
		byPath: make(map[string]string),
		next:   1,
	}
}

// FromMap builds a registry from an existing key -> path mapping.
// Duplicate paths keep the lowest-numbered key.
func FromMap(m map[string]string) *Registry {
	r := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)

	for _, k := range keys {
		p := m[k]
		r.paths[k] = p
		if _, dup := r.byPath[p]; !dup {
			r.byPath[p] = k
		}
		if n, ok := keyNumber(k); ok && n >= r.next {
			r.next = n + 1
		}
	}
	if len(r.paths) >= r.next {
		r.next = len(r.paths) + 1
	}
	return r
}

// Load reads the registry stored at path. A missing file yields an empty
// registry; any other read or decode failure is returned.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	return FromMap(m), nil
}

// Register adds path under a new key unless it is already registered.
// It returns the key holding path and whether a new entry was created.
func (r *Registry) Register(path string) (key string, added bool) {
	if k, ok := r.byPath[path]; ok {
		return k, false
	}

	key = KeyPrefix + strconv.Itoa(r.next)
	r.next++
	r.paths[key] = path
	r.byPath[path] = key
	return key, true
}

// Lookup returns the path registered under key.
func (r *Registry) Lookup(key string) (string, bool) {
	p, ok := r.paths[key]
	return p, ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.paths)
}

// Keys returns all keys in numeric order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.paths))
	for k := range r.paths {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Entry is one key -> path pair.
type Entry struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

// Entries returns all entries in numeric key order.
func (r *Registry) Entries() []Entry {
	keys := r.Keys()
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = Entry{Key: k, Path: r.paths[k]}
	}
	return entries
}

// MarshalJSON writes the registry as a JSON object with keys in numeric order.
// Encoding the map directly would sort keys lexically, putting beacon10
// before beacon2, so the object is assembled entry by entry.
func (r *Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, e := range r.Entries() {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n    ")
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		p, err := json.Marshal(e.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(p)
	}
	if r.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// Save writes the registry to path, replacing any previous file atomically.
func (r *Registry) Save(path string) error {
	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create registry directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename registry: %w", err)
	}
	return nil
}

// keyNumber parses the numeric suffix of a beacon<N> key.
func keyNumber(key string) (int, bool) {
	s, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// sortKeys orders beacon<N> keys numerically, other keys lexically after them.
func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		ni, iok := keyNumber(keys[i])
		nj, jok := keyNumber(keys[j])
		switch {
		case iok && jok:
			if ni != nj {
				return ni < nj
			}
			return keys[i] < keys[j]
		case iok:
			return true
		case jok:
			return false
		}
		return keys[i] < keys[j]
	})
}
