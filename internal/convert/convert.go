// Package convert discovers VCF files, converts each into a Beacon document,
// and merges the resulting document paths into the beacon registry.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/vibe-beacon/internal/beacon"
	"github.com/inodb/vibe-beacon/internal/registry"
	"github.com/inodb/vibe-beacon/internal/vcf"
)

// ErrConfig marks setup problems that abort a whole run.
var ErrConfig = errors.New("configuration error")

// DocumentExt is appended to the source stem to form the document name.
const DocumentExt = ".json"

// Config controls a conversion run.
type Config struct {
	InputDir     string // directory scanned for .vcf / .vcf.gz files
	OutputDir    string // directory receiving Beacon documents
	RegistryPath string // registry file, loaded at start and rewritten at end
	BaseDir      string // registry paths are stored relative to this directory
	Workers      int    // concurrent conversions; <= 1 converts sequentially
	Defaults     beacon.Defaults
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID      string
	Files      int
	Converted  int
	Existing   int
	Failed     int
	Registered []registry.Entry // entries added by this run
	Failures   []FileError
}

// FileError records a source that could not be converted.
type FileError struct {
	Source string
	Err    error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Converter is the registry manager: it owns the registry for the duration
// of a run and is the only component that mutates it.
type Converter struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a converter for cfg.
func New(cfg Config) *Converter {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	cfg.Defaults = fillDefaults(cfg.Defaults)
	return &Converter{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// fillDefaults replaces each empty field of d with its built-in value.
func fillDefaults(d beacon.Defaults) beacon.Defaults {
	builtin := beacon.DefaultDefaults()
	if d.AssemblyID == "" {
		d.AssemblyID = builtin.AssemblyID
	}
	if d.Description == "" {
		d.Description = builtin.Description
	}
	if d.Organization.ID == "" {
		d.Organization.ID = builtin.Organization.ID
	}
	if d.Organization.Name == "" {
		d.Organization.Name = builtin.Organization.Name
	}
	return d
}

// SetLogger sets the logger for progress and warning messages.
func (c *Converter) SetLogger(l *zap.Logger) {
	c.logger = l
}

// SetClock overrides the time source used for createDateTime.
func (c *Converter) SetClock(now func() time.Time) {
	c.now = now
}

// Discover returns the VCF files directly under dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: input directory %s does not exist", ErrConfig, dir)
		}
		return nil, fmt.Errorf("%w: read input directory: %v", ErrConfig, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !vcf.HasVCFExtension(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns the document path for source under outDir.
func OutputPath(outDir, source string) string {
	return filepath.Join(outDir, vcf.Stem(source)+DocumentExt)
}

// Run converts every discovered source and persists the registry once at the end.
// Per-file failures are logged and counted; configuration and persistence
// failures abort the run without touching the stored registry.
func (c *Converter) Run(ctx context.Context) (*Summary, error) {
	files, err := Discover(c.cfg.InputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no VCF files found in %s", ErrConfig, c.cfg.InputDir)
	}

	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	reg, err := registry.Load(c.cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	sum := &Summary{
		RunID: uuid.New().String(),
		Files: len(files),
	}
	log := c.logger.With(zap.String("run_id", sum.RunID))
	log.Info("starting conversion",
		zap.Int("files", len(files)),
		zap.Int("registered", reg.Len()))

	items := make(chan WorkItem, len(files))
	claimed := make(map[string]bool, len(files))
	for i, f := range files {
		out := OutputPath(c.cfg.OutputDir, f)
		items <- WorkItem{Seq: i, Source: f, Output: out, Reuse: claimed[out]}
		claimed[out] = true
	}
	close(items)

	results := c.ParallelConvert(ctx, items, max(c.cfg.Workers, 1))

	if err := OrderedCollect(results, func(r WorkResult) error {
		name := filepath.Base(r.Source)
		switch {
		case r.Err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sum.Failed++
			sum.Failures = append(sum.Failures, FileError{Source: r.Source, Err: r.Err})
			log.Warn("error processing file", zap.String("file", name), zap.Error(r.Err))
			return nil
		case r.Existed:
			// A sibling source claiming the same output may have failed.
			if _, err := os.Stat(r.Output); err != nil {
				sum.Failed++
				sum.Failures = append(sum.Failures, FileError{Source: r.Source, Err: err})
				log.Warn("error processing file", zap.String("file", name), zap.Error(err))
				return nil
			}
			sum.Existing++
			log.Info("beacon already exists, skipping", zap.String("file", name), zap.String("output", r.Output))
		default:
			sum.Converted++
			fields := []zap.Field{
				zap.String("file", name),
				zap.String("output", r.Output),
				zap.Int("calls", r.CallCount),
			}
			if r.Skipped > 0 {
				fields = append(fields, zap.Int("malformed_lines", r.Skipped))
			}
			log.Info("saved", fields...)
		}

		regPath := registry.Relative(c.cfg.BaseDir, r.Output)
		if key, added := reg.Register(regPath); added {
			sum.Registered = append(sum.Registered, registry.Entry{Key: key, Path: regPath})
			log.Debug("registered beacon", zap.String("key", key), zap.String("path", regPath))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := reg.Save(c.cfg.RegistryPath); err != nil {
		return nil, fmt.Errorf("persist registry: %w", err)
	}

	log.Info("all files have been processed",
		zap.Int("converted", sum.Converted),
		zap.Int("existing", sum.Existing),
		zap.Int("failed", sum.Failed),
		zap.Int("new_entries", len(sum.Registered)))

	return sum, nil
}

// convertOne converts a single source unless its document already exists.
func (c *Converter) convertOne(item WorkItem) WorkResult {
	res := WorkResult{Seq: item.Seq, Source: item.Source, Output: item.Output}

	if item.Reuse {
		res.Existed = true
		return res
	}
	if _, err := os.Stat(item.Output); err == nil {
		res.Existed = true
		return res
	}

	p, err := vcf.NewParser(item.Source)
	if err != nil {
		res.Err = err
		return res
	}
	defer p.Close()

	ds, err := vcf.ReadDataset(p, vcf.Stem(item.Source), c.cfg.Defaults)
	if err != nil {
		res.Err = err
		return res
	}

	doc := beacon.NewDocument(vcf.Stem(item.Source), c.cfg.Defaults.Organization, c.now(), ds)
	if err := beacon.WriteDocument(item.Output, doc); err != nil {
		res.Err = err
		return res
	}

	res.CallCount = ds.CallCount
	res.Skipped = p.Skipped()
	return res
}
