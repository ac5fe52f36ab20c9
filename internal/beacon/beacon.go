// Package beacon defines the Beacon document schema produced from VCF files.
package beacon

import (
	"strconv"
	"strings"
	"time"
)

// APIVersion is the Beacon API version written into every document.
const APIVersion = "1.0.0"

// Fallback values used when a VCF header does not declare them.
const (
	DefaultAssemblyID  = "GRCh38"
	DefaultDescription = "No description available."
)

// Organization describes the publisher of a beacon.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultOrganization is the static organization record attached to documents.
var DefaultOrganization = Organization{
	ID:   "example-org",
	Name: "Example Organization",
}

// Defaults holds the values the parser and converter fall back to.
type Defaults struct {
	AssemblyID   string
	Description  string
	Organization Organization
}

// DefaultDefaults returns the built-in fallback values.
func DefaultDefaults() Defaults {
	return Defaults{
		AssemblyID:   DefaultAssemblyID,
		Description:  DefaultDescription,
		Organization: DefaultOrganization,
	}
}

// Variant is one genomic call site in a dataset.
type Variant struct {
	Chromosome     string   `json:"chromosome"`
	Position       int64    `json:"position"`
	ReferenceBases string   `json:"referenceBases"`
	AlternateBases []string `json:"alternateBases"`
	VariantID      string   `json:"variantId"`
}

// Key returns the chromosome-position-reference key used to match variants
// across documents.
func (v *Variant) Key() string {
	return v.Chromosome + "-" + strconv.FormatInt(v.Position, 10) + "-" + v.ReferenceBases
}

// AltString returns the alternate alleles joined by commas, order preserved.
func (v *Variant) AltString() string {
	return strings.Join(v.AlternateBases, ",")
}

// HasAlt reports whether allele is one of the alternate alleles.
func (v *Variant) HasAlt(allele string) bool {
	for _, a := range v.AlternateBases {
		if a == allele {
			return true
		}
	}
	return false
}

// Dataset is the metadata and variant list converted from one VCF file.
type Dataset struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AssemblyID  string    `json:"assemblyId"`
	SampleCount int       `json:"sampleCount"`
	CallCount   int       `json:"callCount"`
	Variants    []Variant `json:"variants"`
}

// AddVariant appends v and keeps CallCount in step with the variant list.
func (d *Dataset) AddVariant(v Variant) {
	d.Variants = append(d.Variants, v)
	d.CallCount++
}

// Document is a serialized Beacon, one per converted source file.
type Document struct {
	BeaconID       string       `json:"beaconId"`
	APIVersion     string       `json:"apiVersion"`
	Organization   Organization `json:"organization"`
	CreateDateTime string       `json:"createDateTime"`
	Datasets       []Dataset    `json:"datasets"`
}

// NewDocument wraps a dataset in a document stamped with createdAt.
func NewDocument(beaconID string, org Organization, createdAt time.Time, ds *Dataset) *Document {
	doc := &Document{
		BeaconID:       beaconID,
		APIVersion:     APIVersion,
		Organization:   org,
		CreateDateTime: createdAt.Format(time.RFC3339),
		Datasets:       []Dataset{},
	}
	if ds != nil {
		if ds.Variants == nil {
			ds.Variants = []Variant{}
		}
		doc.Datasets = append(doc.Datasets, *ds)
	}
	return doc
}
