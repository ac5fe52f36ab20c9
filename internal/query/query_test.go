package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-beacon/internal/beacon"
	"github.com/inodb/vibe-beacon/internal/registry"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func variant(chrom string, pos int64, ref string, alts ...string) beacon.Variant {
	return beacon.Variant{Chromosome: chrom, Position: pos, ReferenceBases: ref, AlternateBases: alts, VariantID: "."}
}

// newCatalog writes one document per dataset list and registers them in order.
func newCatalog(t *testing.T, docs map[string][]beacon.Variant, order ...string) *registry.Catalog {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "beacon"), 0755))

	reg := registry.New()
	for _, name := range order {
		ds := &beacon.Dataset{ID: name, AssemblyID: "GRCh38", Description: "Genotype", SampleCount: 3}
		for _, v := range docs[name] {
			ds.AddVariant(v)
		}
		path := filepath.Join(base, "beacon", name+".json")
		if docs[name] != nil {
			doc := beacon.NewDocument(name, beacon.DefaultOrganization, fixedNow, ds)
			require.NoError(t, beacon.WriteDocument(path, doc))
		}
		reg.Register("beacon/" + name + ".json")
	}
	return registry.NewCatalog(reg, base)
}

func TestNewFilter(t *testing.T) {
	f, err := NewFilter(Request{Position: "100"})
	require.NoError(t, err)
	assert.True(t, f.HasPosition)
	assert.Equal(t, int64(100), f.Position)

	f, err = NewFilter(Request{})
	require.NoError(t, err)
	assert.False(t, f.HasPosition)

	_, err = NewFilter(Request{Position: "1e3"})
	assert.Error(t, err)
}

func TestFilter_Match(t *testing.T) {
	v := variant("1", 200, "C", "G", "T")

	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{"empty request matches all", Request{}, true},
		{"chromosome", Request{Chromosome: "1"}, true},
		{"wrong chromosome", Request{Chromosome: "2"}, false},
		{"position", Request{Position: "200"}, true},
		{"wrong position", Request{Position: "201"}, false},
		{"reference", Request{ReferenceBases: "C"}, true},
		{"wrong reference", Request{ReferenceBases: "A"}, false},
		{"second allele", Request{AlternateBases: "T"}, true},
		{"joined alleles do not match", Request{AlternateBases: "G,T"}, false},
		{"all fields", Request{Chromosome: "1", Position: "200", ReferenceBases: "C", AlternateBases: "G"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(&v))
		})
	}
}

func TestEngine_QueryAllBeacons(t *testing.T) {
	cat := newCatalog(t, map[string][]beacon.Variant{
		"a": {variant("1", 100, "A", "T"), variant("1", 100, "A", "G"), variant("2", 5, "C", "T")},
		"b": {variant("1", 100, "A", "T")},
		"c": {variant("3", 1, "G", "A")},
	}, "a", "b", "c")

	e := NewEngine(cat, nil)
	e.SetClock(func() time.Time { return fixedNow })

	resp, err := e.Query(Request{Chromosome: "1", Position: "100"})
	require.NoError(t, err)

	assert.Equal(t, "b", resp.ID, "id is the last beacon with matches")
	assert.Equal(t, beacon.APIVersion, resp.APIVersion)
	assert.Equal(t, "2024-05-06T07:08:09Z", resp.CreateDateTime)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []DatasetResponse{
		{DatasetID: "a", Exists: true, AssemblyID: "GRCh38", VariantCount: 2, CallCount: 2, SampleCount: 3, Note: "Genotype"},
		{DatasetID: "b", Exists: true, AssemblyID: "GRCh38", VariantCount: 1, CallCount: 1, SampleCount: 3, Note: "Genotype"},
	}, resp.DatasetAlleleResponses)
}

func TestEngine_QueryNoMatch(t *testing.T) {
	cat := newCatalog(t, map[string][]beacon.Variant{
		"a": {variant("1", 100, "A", "T")},
	}, "a")

	resp, err := NewEngine(cat, nil).Query(Request{Chromosome: "X"})
	require.NoError(t, err)
	assert.Equal(t, MsgNoMatchInAny, resp.Error)
	assert.Empty(t, resp.DatasetAlleleResponses)
}

func TestEngine_QuerySpecificBeacon(t *testing.T) {
	cat := newCatalog(t, map[string][]beacon.Variant{
		"a":       {variant("1", 100, "A", "T")},
		"b":       {variant("1", 100, "A", "T")},
		"missing": nil,
	}, "a", "b", "missing")
	e := NewEngine(cat, nil)

	resp, err := e.Query(Request{AlternateBases: "T", BeaconID: "beacon2"})
	require.NoError(t, err)
	assert.Equal(t, "b", resp.ID)
	require.Len(t, resp.DatasetAlleleResponses, 1)
	assert.Equal(t, "b", resp.DatasetAlleleResponses[0].DatasetID)

	resp, err = e.Query(Request{BeaconID: "beacon42"})
	require.NoError(t, err)
	assert.Equal(t, MsgInvalidBeacon, resp.Error)

	resp, err = e.Query(Request{BeaconID: "beacon3"})
	require.NoError(t, err)
	assert.Equal(t, MsgNoMatchInOne, resp.Error)

	resp, err = e.Query(Request{Chromosome: "9", BeaconID: "beacon1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "a", resp.ID)
	assert.Empty(t, resp.DatasetAlleleResponses)
}

func TestEngine_SkipsMissingDocuments(t *testing.T) {
	cat := newCatalog(t, map[string][]beacon.Variant{
		"gone": nil,
		"a":    {variant("1", 100, "A", "T")},
	}, "gone", "a")

	resp, err := NewEngine(cat, nil).Query(Request{})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.ID)
	assert.Len(t, resp.DatasetAlleleResponses, 1)
}

func TestEngine_InvalidRequest(t *testing.T) {
	cat := newCatalog(t, map[string][]beacon.Variant{"a": {variant("1", 1, "A", "T")}}, "a")

	_, err := NewEngine(cat, nil).Query(Request{Position: "abc"})
	assert.Error(t, err)
}

func TestMatchDocument_DefaultsForMissingMetadata(t *testing.T) {
	doc := &beacon.Document{Datasets: []beacon.Dataset{{
		ID:       "x",
		Variants: []beacon.Variant{variant("1", 1, "A", "T")},
	}}}

	got := MatchDocument(doc, Filter{})
	require.Len(t, got, 1)
	assert.Equal(t, "Unknown", got[0].AssemblyID)
	assert.Equal(t, beacon.DefaultDescription, got[0].Note)
}
