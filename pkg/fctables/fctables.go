// Package fctables exposes the /fctables resource: food composition tables
// identified by urn:fctable:<slug>.
package fctables

import (
	"context"
	"time"

	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
)

const (
	Endpoint  = "fctables"
	URNPrefix = "urn:fctable:"
)

func list() any { return []any{} }

// Schema is the food composition table field table.
var Schema = entity.NewSchema(Endpoint, URNPrefix, []entity.Field{
	{Name: "ID", Key: "id", ReadOnly: true},
	{Name: "Title", Default: ""},
	{Name: "Description"},
	{Name: "Status", Default: "active"},
	{Name: "Type", Default: "food_composition_table"},

	{Name: "CompilingInstitution", Default: ""},
	{Name: "DatabaseName", Default: ""},
	{Name: "ClassificationSchemes", Factory: list},
	{Name: "StandardizationSchemes", Factory: list},
	{Name: "MeasurementUnits", Factory: list},
	{Name: "ReferencePortions", Factory: list},
	{Name: "CompletenessPercent"},
	{Name: "CompletenessDescription"},
	{Name: "NutrientCoverage", Factory: list},
	{Name: "DataFormats", Factory: list},
	{Name: "TasksSupported", Factory: list},
	{Name: "NumberOfEntries"},
	{Name: "MinNutrientsPerItem"},
	{Name: "MaxNutrientsPerItem"},

	{Name: "URL", Key: "url"},
	{Name: "License"},
	{Name: "ExternalID", Key: "external_id"},
	{Name: "OrganizationURN", Key: "organization_urn"},

	{Name: "Abstract"},
	{Name: "Category"},
	{Name: "Content", Default: ""},
	{Name: "Venue", Default: ""},

	{Name: "Authors", Factory: list},
	{Name: "Tags", Factory: list},
	{Name: "Language"},

	// artifacts is a list of objects (name, url, format).
	{Name: "Artifacts", Factory: list},
	{Name: "Region"},

	{Name: "Creator", ReadOnly: true},
	{Name: "CreatedAt", ReadOnly: true},
	{Name: "UpdatedAt", ReadOnly: true},
})

// FCTable is a typed view over a food composition table entity.
type FCTable struct {
	*entity.Entity
}

// Wrap adapts an entity built on Schema.
func Wrap(e *entity.Entity) *FCTable { return &FCTable{Entity: e} }

// Collection is the paginated view over all tables.
type Collection = entity.Collection[*FCTable]

// NewCollection binds the fctables collection to tr.
func NewCollection(tr entity.Transport, opts ...entity.Option) *Collection {
	return entity.NewCollection(tr, Schema, Wrap, opts...)
}

func (f *FCTable) Title(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, f.Entity, "title")
}

func (f *FCTable) SetTitle(ctx context.Context, v string) error {
	return f.Set(ctx, "title", v)
}

func (f *FCTable) CompilingInstitution(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, f.Entity, "compiling_institution")
}

func (f *FCTable) SetCompilingInstitution(ctx context.Context, v string) error {
	return f.Set(ctx, "compiling_institution", v)
}

func (f *FCTable) NutrientCoverage(ctx context.Context) ([]string, error) {
	return entity.Value[[]string](ctx, f.Entity, "nutrient_coverage")
}

func (f *FCTable) SetNutrientCoverage(ctx context.Context, v []string) error {
	return f.Set(ctx, "nutrient_coverage", v)
}

// CompletenessPercent returns 0 when the value is unset.
func (f *FCTable) CompletenessPercent(ctx context.Context) (float64, error) {
	return entity.Value[float64](ctx, f.Entity, "completeness_percent")
}

func (f *FCTable) NumberOfEntries(ctx context.Context) (int, error) {
	return entity.Value[int](ctx, f.Entity, "number_of_entries")
}

// Artifact is a downloadable file attached to a table.
type Artifact struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

func (f *FCTable) Artifacts(ctx context.Context) ([]Artifact, error) {
	var out []Artifact
	raw, err := f.Get(ctx, "artifacts")
	if err != nil {
		return nil, err
	}
	return out, entity.DecodeValue(raw, &out)
}

// Record is a plain snapshot of a table.
type Record struct {
	URN                     string     `json:"urn"`
	ID                      string     `json:"id"`
	Title                   string     `json:"title"`
	Description             string     `json:"description"`
	Status                  string     `json:"status"`
	Type                    string     `json:"type"`
	CompilingInstitution    string     `json:"compiling_institution"`
	DatabaseName            string     `json:"database_name"`
	ClassificationSchemes   []string   `json:"classification_schemes"`
	StandardizationSchemes  []string   `json:"standardization_schemes"`
	MeasurementUnits        []string   `json:"measurement_units"`
	ReferencePortions       []string   `json:"reference_portions"`
	CompletenessPercent     float64    `json:"completeness_percent"`
	CompletenessDescription string     `json:"completeness_description"`
	NutrientCoverage        []string   `json:"nutrient_coverage"`
	DataFormats             []string   `json:"data_formats"`
	TasksSupported          []string   `json:"tasks_supported"`
	NumberOfEntries         int        `json:"number_of_entries"`
	MinNutrientsPerItem     int        `json:"min_nutrients_per_item"`
	MaxNutrientsPerItem     int        `json:"max_nutrients_per_item"`
	URL                     string     `json:"url"`
	License                 string     `json:"license"`
	ExternalID              string     `json:"external_id"`
	OrganizationURN         string     `json:"organization_urn"`
	Authors                 []string   `json:"authors"`
	Tags                    []string   `json:"tags"`
	Language                string     `json:"language"`
	Artifacts               []Artifact `json:"artifacts"`
	Region                  string     `json:"region"`
	Creator                 string     `json:"creator"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// Record loads the table if needed and returns a typed snapshot.
func (f *FCTable) Record(ctx context.Context) (Record, error) {
	var r Record
	err := f.Decode(ctx, &r)
	return r, err
}
