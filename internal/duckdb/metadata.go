package duckdb

import (
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for an indexed document.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Same reports whether both fingerprints describe the same file contents.
func (f FileFingerprint) Same(o FileFingerprint) bool {
	return f.Path == o.Path && f.Size == o.Size && f.ModTime.UnixNano() == o.ModTime.UnixNano()
}
