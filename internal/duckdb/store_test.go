package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-beacon/internal/beacon"
	"github.com/inodb/vibe-beacon/internal/compare"
	"github.com/inodb/vibe-beacon/internal/query"
	"github.com/inodb/vibe-beacon/internal/registry"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func variant(chrom string, pos int64, ref string, alts ...string) beacon.Variant {
	return beacon.Variant{Chromosome: chrom, Position: pos, ReferenceBases: ref, AlternateBases: alts}
}

func testDocument(id string, samples int, variants ...beacon.Variant) *beacon.Document {
	ds := &beacon.Dataset{ID: id, Description: "test " + id, AssemblyID: "GRCh38", SampleCount: samples}
	for _, v := range variants {
		ds.AddVariant(v)
	}
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return beacon.NewDocument(id, beacon.DefaultOrganization, created, ds)
}

// writeCatalog writes docs under base/beacon and registers them in order.
func writeCatalog(t *testing.T, docs ...*beacon.Document) *registry.Catalog {
	t.Helper()
	base := t.TempDir()
	reg := registry.New()
	for _, d := range docs {
		rel := "beacon/" + d.BeaconID + ".json"
		require.NoError(t, os.MkdirAll(filepath.Join(base, "beacon"), 0755))
		require.NoError(t, beacon.WriteDocument(filepath.Join(base, rel), d))
		reg.Register(rel)
	}
	return registry.NewCatalog(reg, base)
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "beacon.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileFingerprintSame(t *testing.T) {
	now := time.Now()
	fp := FileFingerprint{Path: "a.json", Size: 100, ModTime: now}
	assert.True(t, fp.Same(fp))

	sized := fp
	sized.Size = 101
	assert.False(t, fp.Same(sized))

	touched := fp
	touched.ModTime = now.Add(time.Second)
	assert.False(t, fp.Same(touched))

	moved := fp
	moved.Path = "b.json"
	assert.False(t, fp.Same(moved))
}

func TestIndexDocumentAndIndexed(t *testing.T) {
	s := openInMemory(t)
	fp := FileFingerprint{Path: "beacon/a.json", Size: 10, ModTime: time.Unix(1700000000, 123)}

	ok, err := s.Indexed("beacon1", fp)
	require.NoError(t, err)
	assert.False(t, ok)

	doc := testDocument("a", 2, variant("1", 100, "A", "T"), variant("2", 200, "G", "C", "T"))
	require.NoError(t, s.IndexDocument("beacon1", fp, doc))

	ok, err = s.Indexed("beacon1", fp)
	require.NoError(t, err)
	assert.True(t, ok)

	stale := fp
	stale.Size = 11
	ok, err = s.Indexed("beacon1", stale)
	require.NoError(t, err)
	assert.False(t, ok)

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT count(*) FROM variants WHERE beacon_key='beacon1'`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestIndexDocumentReplaces(t *testing.T) {
	s := openInMemory(t)
	fp := FileFingerprint{Path: "beacon/a.json", Size: 10, ModTime: time.Unix(1700000000, 0)}

	require.NoError(t, s.IndexDocument("beacon1", fp, testDocument("a", 1, variant("1", 1, "A", "T"), variant("1", 2, "A", "T"))))
	require.NoError(t, s.IndexDocument("beacon1", fp, testDocument("a", 1, variant("1", 3, "A", "T"))))

	var variants, datasets, documents int
	require.NoError(t, s.DB().QueryRow(`SELECT count(*) FROM variants`).Scan(&variants))
	require.NoError(t, s.DB().QueryRow(`SELECT count(*) FROM datasets`).Scan(&datasets))
	require.NoError(t, s.DB().QueryRow(`SELECT count(*) FROM documents`).Scan(&documents))
	assert.Equal(t, 1, variants)
	assert.Equal(t, 1, datasets)
	assert.Equal(t, 1, documents)
}

func TestSync(t *testing.T) {
	cat := writeCatalog(t,
		testDocument("a", 2, variant("1", 100, "A", "T")),
		testDocument("b", 3, variant("1", 100, "A", "G")),
	)
	s := openInMemory(t)

	stats, err := s.Sync(cat)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 0, stats.Unchanged)
	assert.Empty(t, stats.Failed)

	stats, err = s.Sync(cat)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, 2, stats.Unchanged)

	// Rewrite beacon2 with different content and size.
	path, err := cat.Path("beacon2")
	require.NoError(t, err)
	require.NoError(t, beacon.WriteDocument(path, testDocument("b", 3, variant("1", 100, "A", "G"), variant("3", 5, "C", "A"))))

	stats, err = s.Sync(cat)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Unchanged)
}

func TestSyncMissingAndCorrupt(t *testing.T) {
	cat := writeCatalog(t,
		testDocument("a", 1, variant("1", 1, "A", "T")),
		testDocument("b", 1, variant("1", 1, "A", "T")),
	)

	pathA, err := cat.Path("beacon1")
	require.NoError(t, err)
	require.NoError(t, os.Remove(pathA))
	pathB, err := cat.Path("beacon2")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pathB, []byte("{not json"), 0644))

	s := openInMemory(t)
	stats, err := s.Sync(cat)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, 1, stats.Missing)
	require.Contains(t, stats.Failed, "beacon2")
}

func TestSearchBeacon(t *testing.T) {
	s := openInMemory(t)
	fp := FileFingerprint{Path: "beacon/a.json", Size: 1, ModTime: time.Unix(1, 0)}
	doc := testDocument("a", 2,
		variant("1", 100, "A", "T"),
		variant("1", 100, "A", "G", "T"),
		variant("2", 200, "C", "G"),
	)
	require.NoError(t, s.IndexDocument("beacon1", fp, doc))

	id, got, err := s.SearchBeacon("beacon1", query.Filter{Chromosome: "1", AlternateBases: "T"})
	require.NoError(t, err)
	assert.Equal(t, "a", id)
	require.Len(t, got, 1)
	assert.Equal(t, query.DatasetResponse{
		DatasetID:    "a",
		Exists:       true,
		AssemblyID:   "GRCh38",
		VariantCount: 2,
		CallCount:    2,
		SampleCount:  2,
		Note:         "test a",
	}, got[0])

	_, got, err = s.SearchBeacon("beacon1", query.Filter{Position: 300, HasPosition: true})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, _, err = s.SearchBeacon("beacon9", query.Filter{})
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestSearchBeaconMatchesDocumentSearcher(t *testing.T) {
	cat := writeCatalog(t,
		testDocument("a", 2,
			variant("1", 100, "A", "T"),
			variant("1", 100, "A", "G", "T"),
			variant("X", 5, "G", "GA"),
		),
		testDocument("b", 0, variant("1", 100, "A", "C")),
	)
	s := openInMemory(t)
	_, err := s.Sync(cat)
	require.NoError(t, err)

	filters := []query.Filter{
		{},
		{Chromosome: "1"},
		{Chromosome: "1", Position: 100, HasPosition: true, ReferenceBases: "A"},
		{AlternateBases: "T"},
		{AlternateBases: "GA"},
		{AlternateBases: "A"},
		{Chromosome: "Y"},
	}
	js := query.DocumentSearcher{Catalog: cat}
	for _, f := range filters {
		for _, key := range cat.Keys() {
			wantID, want, err := js.SearchBeacon(key, f)
			require.NoError(t, err)
			gotID, got, err := s.SearchBeacon(key, f)
			require.NoError(t, err)
			assert.Equal(t, wantID, gotID, "%s %+v", key, f)
			assert.Equal(t, want, got, "%s %+v", key, f)
		}
	}
}

func TestEngineWithStore(t *testing.T) {
	cat := writeCatalog(t,
		testDocument("a", 2, variant("1", 100, "A", "T")),
		testDocument("b", 4, variant("1", 100, "A", "T"), variant("1", 200, "C", "G")),
	)
	s := openInMemory(t)
	_, err := s.Sync(cat)
	require.NoError(t, err)

	e := query.NewEngine(cat, s)
	resp, err := e.Query(query.Request{Chromosome: "1", Position: "100"})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "b", resp.ID)
	require.Len(t, resp.DatasetAlleleResponses, 2)
	assert.Equal(t, "a", resp.DatasetAlleleResponses[0].DatasetID)
	assert.Equal(t, 4, resp.DatasetAlleleResponses[1].SampleCount)
}

func TestCommonVariants(t *testing.T) {
	a := testDocument("a", 1,
		variant("1", 100, "A", "G"),
		variant("1", 100, "A", "T"), // later duplicate wins
		variant("2", 5, "C", "G", "T"),
		variant("3", 9, "T", "A"),
	)
	b := testDocument("b", 1,
		variant("1", 100, "A", "T"),
		variant("2", 5, "C", "T", "G"),
		variant("3", 9, "T", "A"),
	)
	cat := writeCatalog(t, a, b)
	s := openInMemory(t)
	_, err := s.Sync(cat)
	require.NoError(t, err)

	got, err := s.CommonVariants("beacon1", "beacon2")
	require.NoError(t, err)
	assert.Equal(t, []string{"1-100-A", "3-9-T"}, got.Keys())
	assert.Equal(t, compare.Variant{Chromosome: "1", Position: 100, ReferenceBases: "A", AlternateBases: "T"}, got["1-100-A"])

	want, err := compare.DocumentComparer{Catalog: cat}.CommonVariants("beacon1", "beacon2")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = s.CommonVariants("beacon1", "beacon5")
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestSearchBeaconMatchesDocumentSearcherAfterRemoval(t *testing.T) {
	cat := writeCatalog(t,
		testDocument("a", 1, variant("1", 100, "A", "T")),
		testDocument("b", 1, variant("1", 100, "A", "T")),
		testDocument("c", 1, variant("1", 100, "A", "T")),
	)
	s := openInMemory(t)
	_, err := s.Sync(cat)
	require.NoError(t, err)

	pathA, err := cat.Path("beacon1")
	require.NoError(t, err)
	require.NoError(t, os.Remove(pathA))
	pathB, err := cat.Path("beacon2")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pathB, []byte("{not json"), 0644))

	stats, err := s.Sync(cat)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Missing)
	assert.Contains(t, stats.Failed, "beacon2")
	assert.Equal(t, 1, stats.Unchanged)

	js := query.DocumentSearcher{Catalog: cat}
	for _, key := range []string{"beacon1", "beacon2"} {
		_, _, jsErr := js.SearchBeacon(key, query.Filter{})
		require.Error(t, jsErr)
		_, _, err := s.SearchBeacon(key, query.Filter{})
		assert.ErrorIs(t, err, ErrNotIndexed, key)
	}

	for _, searcher := range []query.Searcher{nil, s} {
		resp, err := query.NewEngine(cat, searcher).Query(query.Request{BeaconID: "beacon1"})
		require.NoError(t, err)
		assert.Equal(t, query.MsgNoMatchInOne, resp.Error)
		assert.Empty(t, resp.DatasetAlleleResponses)
	}

	_, err = s.CommonVariants("beacon1", "beacon3")
	assert.ErrorIs(t, err, ErrNotIndexed)
}
