// Package query answers allele requests against registered Beacon documents.
package query

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-beacon/internal/beacon"
	"github.com/inodb/vibe-beacon/internal/registry"
)

// Error messages reported in Response.Error.
const (
	MsgInvalidBeacon  = "Invalid beaconId specified."
	MsgNoMatchInOne   = "No matching variants found in the specified Beacon."
	MsgNoMatchInAny   = "No matching variants found in any Beacon."
	unknownAssemblyID = "Unknown"
)

// Request is an allele query. Empty fields do not filter.
type Request struct {
	Chromosome     string `json:"chromosome" query:"chromosome"`
	Position       string `json:"position" query:"position"`
	ReferenceBases string `json:"referenceBases" query:"referenceBases"`
	AlternateBases string `json:"alternateBases" query:"alternateBases"`
	BeaconID       string `json:"beaconId" query:"beaconId"`
}

// Filter is a validated Request.
type Filter struct {
	Chromosome     string
	Position       int64
	HasPosition    bool
	ReferenceBases string
	AlternateBases string
}

// NewFilter validates req. Position must be a base-10 integer when set.
func NewFilter(req Request) (Filter, error) {
	f := Filter{
		Chromosome:     req.Chromosome,
		ReferenceBases: req.ReferenceBases,
		AlternateBases: req.AlternateBases,
	}
	if req.Position != "" {
		pos, err := strconv.ParseInt(req.Position, 10, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid position %q: %w", req.Position, err)
		}
		f.Position = pos
		f.HasPosition = true
	}
	return f, nil
}

// Match reports whether v satisfies every set criterion.
// AlternateBases matches when it is one of the variant's alleles.
func (f Filter) Match(v *beacon.Variant) bool {
	if f.Chromosome != "" && v.Chromosome != f.Chromosome {
		return false
	}
	if f.HasPosition && v.Position != f.Position {
		return false
	}
	if f.ReferenceBases != "" && v.ReferenceBases != f.ReferenceBases {
		return false
	}
	if f.AlternateBases != "" && !v.HasAlt(f.AlternateBases) {
		return false
	}
	return true
}

// DatasetResponse summarizes the matches within one dataset.
type DatasetResponse struct {
	DatasetID    string `json:"datasetId"`
	Exists       bool   `json:"exists"`
	AssemblyID   string `json:"assemblyId"`
	VariantCount int    `json:"variantCount"`
	CallCount    int    `json:"callCount"`
	SampleCount  int    `json:"sampleCount"`
	Note         string `json:"note"`
}

// Response is the answer to a Request.
type Response struct {
	ID                     string            `json:"id"`
	APIVersion             string            `json:"apiVersion"`
	CreateDateTime         string            `json:"createDateTime"`
	AlleleRequest          Request           `json:"alleleRequest"`
	DatasetAlleleResponses []DatasetResponse `json:"datasetAlleleResponses"`
	Error                  string            `json:"error,omitempty"`
}

// MatchDocument returns a response for every dataset in doc with at least
// one matching variant.
func MatchDocument(doc *beacon.Document, f Filter) []DatasetResponse {
	var out []DatasetResponse
	for i := range doc.Datasets {
		ds := &doc.Datasets[i]

		matched := 0
		for j := range ds.Variants {
			if f.Match(&ds.Variants[j]) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}

		out = append(out, NewDatasetResponse(ds.ID, ds.AssemblyID, ds.Description, matched, ds.SampleCount))
	}
	return out
}

// NewDatasetResponse builds the summary for a dataset with matched variants.
// Missing assembly or description fall back to placeholders.
func NewDatasetResponse(id, assembly, description string, matched, samples int) DatasetResponse {
	if assembly == "" {
		assembly = unknownAssemblyID
	}
	if description == "" {
		description = beacon.DefaultDescription
	}
	return DatasetResponse{
		DatasetID:    id,
		Exists:       true,
		AssemblyID:   assembly,
		VariantCount: matched,
		CallCount:    matched,
		SampleCount:  samples,
		Note:         description,
	}
}

// Searcher finds matching datasets within one registered beacon.
type Searcher interface {
	SearchBeacon(key string, f Filter) (beaconID string, datasets []DatasetResponse, err error)
}

// DocumentSearcher searches the JSON documents listed in a catalog.
type DocumentSearcher struct {
	Catalog *registry.Catalog
}

// SearchBeacon loads the document for key and matches it against f.
func (s DocumentSearcher) SearchBeacon(key string, f Filter) (string, []DatasetResponse, error) {
	doc, err := s.Catalog.Document(key)
	if err != nil {
		return "", nil, err
	}
	return doc.BeaconID, MatchDocument(doc, f), nil
}

// Engine runs requests over every key of a catalog.
type Engine struct {
	catalog  *registry.Catalog
	searcher Searcher
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an engine reading documents through catalog.
// A nil searcher searches the JSON documents directly.
func NewEngine(catalog *registry.Catalog, searcher Searcher) *Engine {
	if searcher == nil {
		searcher = DocumentSearcher{Catalog: catalog}
	}
	return &Engine{
		catalog:  catalog,
		searcher: searcher,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
}

// SetLogger sets the logger for skipped documents.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetClock overrides the time source used for createDateTime.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Query answers req. An error is returned only for an invalid request;
// lookup failures are reported in Response.Error.
func (e *Engine) Query(req Request) (*Response, error) {
	f, err := NewFilter(req)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		APIVersion:             beacon.APIVersion,
		CreateDateTime:         e.now().Format(time.RFC3339),
		AlleleRequest:          req,
		DatasetAlleleResponses: []DatasetResponse{},
	}

	if req.BeaconID != "" {
		if !e.catalog.Has(req.BeaconID) {
			resp.Error = MsgInvalidBeacon
			return resp, nil
		}
		id, datasets, err := e.searcher.SearchBeacon(req.BeaconID, f)
		if err != nil {
			e.logger.Warn("cannot search beacon", zap.String("key", req.BeaconID), zap.Error(err))
			resp.Error = MsgNoMatchInOne
			return resp, nil
		}
		resp.ID = id
		resp.DatasetAlleleResponses = append(resp.DatasetAlleleResponses, datasets...)
		return resp, nil
	}

	for _, key := range e.catalog.Keys() {
		id, datasets, err := e.searcher.SearchBeacon(key, f)
		if err != nil {
			e.logger.Warn("skipping beacon", zap.String("key", key), zap.Error(err))
			continue
		}
		if len(datasets) == 0 {
			continue
		}
		resp.ID = id
		resp.DatasetAlleleResponses = append(resp.DatasetAlleleResponses, datasets...)
	}

	if len(resp.DatasetAlleleResponses) == 0 {
		resp.Error = MsgNoMatchInAny
	}
	return resp, nil
}
