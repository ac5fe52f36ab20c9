package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-beacon/internal/beacon"
	"github.com/inodb/vibe-beacon/internal/compare"
	"github.com/inodb/vibe-beacon/internal/query"
	"github.com/inodb/vibe-beacon/internal/registry"
)

// ErrNotIndexed is returned for beacon keys with no indexed document.
var ErrNotIndexed = errors.New("beacon not indexed")

// Indexed reports whether key is indexed from a file matching fp.
func (s *Store) Indexed(key string, fp FileFingerprint) (bool, error) {
	var (
		path    string
		size    int64
		modTime int64
	)
	err := s.db.QueryRow(`SELECT path, size, mod_time FROM documents WHERE beacon_key=?`, key).
		Scan(&path, &size, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query document: %w", err)
	}
	stored := FileFingerprint{Path: path, Size: size, ModTime: time.Unix(0, modTime)}
	return stored.Same(fp), nil
}

// IndexDocument replaces the indexed rows for key with the contents of doc.
// The documents row is written last, so a key only reports as indexed once
// its variants are in place.
func (s *Store) IndexDocument(key string, fp FileFingerprint, doc *beacon.Document) error {
	if err := s.Remove(key); err != nil {
		return err
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if err := appendRows(conn, "datasets", func(a *goduckdb.Appender) error {
		for i := range doc.Datasets {
			ds := &doc.Datasets[i]
			if err := a.AppendRow(
				key, int64(i), ds.ID, ds.Description, ds.AssemblyID,
				int64(ds.SampleCount), int64(ds.CallCount),
			); err != nil {
				return fmt.Errorf("append dataset: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := appendRows(conn, "variants", func(a *goduckdb.Appender) error {
		var ord int64
		for i := range doc.Datasets {
			for j := range doc.Datasets[i].Variants {
				v := &doc.Datasets[i].Variants[j]
				if err := a.AppendRow(
					key, ord, int64(i), v.Chromosome, v.Position,
					v.ReferenceBases, v.AltString(), v.VariantID,
				); err != nil {
					return fmt.Errorf("append variant: %w", err)
				}
				ord++
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if _, err := s.db.Exec(`INSERT INTO documents VALUES (?, ?, ?, ?, ?)`,
		key, doc.BeaconID, fp.Path, fp.Size, fp.ModTime.UnixNano()); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// appendRows runs fill against an appender for table on conn and flushes it.
func appendRows(conn *sql.Conn, table string, fill func(*goduckdb.Appender) error) error {
	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create %s appender: %w", table, err)
	}

	if err := fill(appender); err != nil {
		appender.Close()
		return err
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", table, err)
	}
	return nil
}

// Remove deletes every indexed row for key.
func (s *Store) Remove(key string) error {
	for _, table := range []string{"documents", "datasets", "variants"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE beacon_key=?", key); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// SyncStats reports the outcome of Sync.
type SyncStats struct {
	Indexed   int
	Unchanged int
	Missing   int
	Failed    map[string]error
}

// Sync indexes every document in cat that is new or changed on disk.
// Missing and unreadable documents are recorded and their rows dropped, so
// searches report them the same way reading the documents directly does.
func (s *Store) Sync(cat *registry.Catalog) (*SyncStats, error) {
	stats := &SyncStats{Failed: make(map[string]error)}

	for _, key := range cat.Keys() {
		path, err := cat.Path(key)
		if err != nil {
			return nil, err
		}

		fp, err := StatFile(path)
		if err != nil {
			if err := s.Remove(key); err != nil {
				return nil, err
			}
			stats.Missing++
			continue
		}

		ok, err := s.Indexed(key, fp)
		if err != nil {
			return nil, err
		}
		if ok {
			stats.Unchanged++
			continue
		}

		doc, err := beacon.ReadDocument(path)
		if err != nil {
			if err := s.Remove(key); err != nil {
				return nil, err
			}
			stats.Failed[key] = err
			continue
		}
		if err := s.IndexDocument(key, fp, doc); err != nil {
			return nil, fmt.Errorf("index %s: %w", key, err)
		}
		stats.Indexed++
	}
	return stats, nil
}

// beaconID returns the indexed beacon id for key.
func (s *Store) beaconID(key string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT beacon_id FROM documents WHERE beacon_key=?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotIndexed, key)
	}
	if err != nil {
		return "", fmt.Errorf("query document: %w", err)
	}
	return id, nil
}

// SearchBeacon answers an allele filter for one indexed beacon.
// It implements query.Searcher.
func (s *Store) SearchBeacon(key string, f query.Filter) (string, []query.DatasetResponse, error) {
	id, err := s.beaconID(key)
	if err != nil {
		return "", nil, err
	}

	conds := []string{"d.beacon_key = ?"}
	args := []any{key}
	if f.Chromosome != "" {
		conds = append(conds, "v.chrom = ?")
		args = append(args, f.Chromosome)
	}
	if f.HasPosition {
		conds = append(conds, "v.pos = ?")
		args = append(args, f.Position)
	}
	if f.ReferenceBases != "" {
		conds = append(conds, "v.ref = ?")
		args = append(args, f.ReferenceBases)
	}
	if f.AlternateBases != "" {
		conds = append(conds, "list_contains(string_split(v.alt, ','), ?)")
		args = append(args, f.AlternateBases)
	}

	rows, err := s.db.Query(`SELECT
		d.dataset_id, d.assembly_id, d.description, d.sample_count, count(*)
		FROM datasets d
		JOIN variants v ON v.beacon_key = d.beacon_key AND v.dataset_ordinal = d.ordinal
		WHERE `+strings.Join(conds, " AND ")+`
		GROUP BY d.ordinal, d.dataset_id, d.assembly_id, d.description, d.sample_count
		ORDER BY d.ordinal`, args...)
	if err != nil {
		return "", nil, fmt.Errorf("query alleles: %w", err)
	}
	defer rows.Close()

	var out []query.DatasetResponse
	for rows.Next() {
		var (
			datasetID, assembly, description string
			samples, matched                 int64
		)
		if err := rows.Scan(&datasetID, &assembly, &description, &samples, &matched); err != nil {
			return "", nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, query.NewDatasetResponse(datasetID, assembly, description, int(matched), int(samples)))
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return id, out, nil
}

// CommonVariants joins two indexed beacons on chromosome, position,
// reference and the comma-joined alternate alleles. Within one beacon the
// last variant for a key wins. It implements compare.Comparer.
func (s *Store) CommonVariants(keyA, keyB string) (compare.Set, error) {
	for _, k := range []string{keyA, keyB} {
		if _, err := s.beaconID(k); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.Query(`WITH
		a AS (
			SELECT chrom, pos, ref, alt FROM variants WHERE beacon_key = ?
			QUALIFY row_number() OVER (PARTITION BY chrom, pos, ref ORDER BY ord DESC) = 1
		),
		b AS (
			SELECT chrom, pos, ref, alt FROM variants WHERE beacon_key = ?
			QUALIFY row_number() OVER (PARTITION BY chrom, pos, ref ORDER BY ord DESC) = 1
		)
		SELECT a.chrom, a.pos, a.ref, a.alt
		FROM a JOIN b ON a.chrom = b.chrom AND a.pos = b.pos AND a.ref = b.ref AND a.alt = b.alt`,
		keyA, keyB)
	if err != nil {
		return nil, fmt.Errorf("query common variants: %w", err)
	}
	defer rows.Close()

	out := make(compare.Set)
	for rows.Next() {
		var v compare.Variant
		if err := rows.Scan(&v.Chromosome, &v.Position, &v.ReferenceBases, &v.AlternateBases); err != nil {
			return nil, fmt.Errorf("scan common variant: %w", err)
		}
		bv := beacon.Variant{Chromosome: v.Chromosome, Position: v.Position, ReferenceBases: v.ReferenceBases}
		out[bv.Key()] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate common variants: %w", err)
	}
	return out, nil
}
