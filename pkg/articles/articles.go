// Package articles exposes the /articles resource: scientific and editorial
// articles identified by urn:article:<slug>.
package articles

import (
	"context"
	"time"

	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
)

const (
	Endpoint  = "articles"
	URNPrefix = "urn:article:"
)

func list() any { return []any{} }

// Schema is the article field table.
var Schema = entity.NewSchema(Endpoint, URNPrefix, []entity.Field{
	{Name: "ID", Key: "id", ReadOnly: true},
	{Name: "Title", Default: ""},
	{Name: "Description"},
	{Name: "Status", Default: "active"},
	{Name: "Type", Default: "article"},

	{Name: "URL", Key: "url"},
	{Name: "License"},
	{Name: "ExternalID", Key: "external_id"},
	{Name: "DOI", Key: "doi"},
	{Name: "OrganizationURN", Key: "organization_urn"},

	{Name: "Abstract"},
	{Name: "Category"},
	{Name: "Content", Default: ""},
	{Name: "Venue"},
	{Name: "PublicationYear"},

	{Name: "Authors", Factory: list},
	{Name: "Tags", Factory: list},
	{Name: "AITags", Key: "ai_tags", Factory: list},
	{Name: "Language"},

	{Name: "Region"},
	{Name: "AICategory", Key: "ai_category"},

	{Name: "KeyTakeaways", Factory: list},
	{Name: "AIKeyTakeaways", Key: "ai_key_takeaways", Factory: list},

	{Name: "Creator", ReadOnly: true},
	{Name: "CreatedAt", ReadOnly: true},
	{Name: "UpdatedAt", ReadOnly: true},
	{Name: "EmbeddedAt"},

	{Name: "Extras"},
}, entity.Enhanceable())

// Article is a typed view over an article entity.
type Article struct {
	*entity.Entity
}

// Wrap adapts an entity built on Schema.
func Wrap(e *entity.Entity) *Article { return &Article{Entity: e} }

// Collection is the paginated view over all articles.
type Collection = entity.Collection[*Article]

// NewCollection binds the articles collection to tr.
func NewCollection(tr entity.Transport, opts ...entity.Option) *Collection {
	return entity.NewCollection(tr, Schema, Wrap, opts...)
}

func (a *Article) Title(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, a.Entity, "title")
}

func (a *Article) SetTitle(ctx context.Context, v string) error {
	return a.Set(ctx, "title", v)
}

func (a *Article) Description(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, a.Entity, "description")
}

func (a *Article) SetDescription(ctx context.Context, v string) error {
	return a.Set(ctx, "description", v)
}

func (a *Article) Status(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, a.Entity, "status")
}

func (a *Article) SetStatus(ctx context.Context, v string) error {
	return a.Set(ctx, "status", v)
}

func (a *Article) Abstract(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, a.Entity, "abstract")
}

func (a *Article) SetAbstract(ctx context.Context, v string) error {
	return a.Set(ctx, "abstract", v)
}

func (a *Article) Authors(ctx context.Context) ([]string, error) {
	return entity.Value[[]string](ctx, a.Entity, "authors")
}

func (a *Article) SetAuthors(ctx context.Context, v []string) error {
	return a.Set(ctx, "authors", v)
}

func (a *Article) Tags(ctx context.Context) ([]string, error) {
	return entity.Value[[]string](ctx, a.Entity, "tags")
}

func (a *Article) SetTags(ctx context.Context, v []string) error {
	return a.Set(ctx, "tags", v)
}

func (a *Article) KeyTakeaways(ctx context.Context) ([]string, error) {
	return entity.Value[[]string](ctx, a.Entity, "key_takeaways")
}

func (a *Article) Extras(ctx context.Context) (map[string]any, error) {
	return entity.Value[map[string]any](ctx, a.Entity, "extras")
}

func (a *Article) AITags(ctx context.Context) ([]string, error) {
	return entity.Value[[]string](ctx, a.Entity, "ai_tags")
}

// Record is a plain snapshot of an article.
type Record struct {
	URN             string         `json:"urn"`
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          string         `json:"status"`
	Type            string         `json:"type"`
	URL             string         `json:"url"`
	License         string         `json:"license"`
	ExternalID      string         `json:"external_id"`
	DOI             string         `json:"doi"`
	OrganizationURN string         `json:"organization_urn"`
	Abstract        string         `json:"abstract"`
	Category        string         `json:"category"`
	Content         string         `json:"content"`
	Venue           string         `json:"venue"`
	PublicationYear string         `json:"publication_year"`
	Authors         []string       `json:"authors"`
	Tags            []string       `json:"tags"`
	AITags          []string       `json:"ai_tags"`
	Language        string         `json:"language"`
	Region          string         `json:"region"`
	AICategory      string         `json:"ai_category"`
	KeyTakeaways    []string       `json:"key_takeaways"`
	AIKeyTakeaways  []string       `json:"ai_key_takeaways"`
	Creator         string         `json:"creator"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	EmbeddedAt      time.Time      `json:"embedded_at"`
	Extras          map[string]any `json:"extras"`
}

// Record loads the article if needed and returns a typed snapshot.
func (a *Article) Record(ctx context.Context) (Record, error) {
	var r Record
	err := a.Decode(ctx, &r)
	return r, err
}
