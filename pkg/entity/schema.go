package entity

import (
	"context"
	"net/url"
	"strings"

	"github.com/iancoleman/strcase"
)

// Transport issues requests relative to the versioned API root and returns
// the raw JSON response body. Failures are returned as classified errors.
type Transport interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
	Post(ctx context.Context, path string, body any) ([]byte, error)
	Patch(ctx context.Context, path string, body any) ([]byte, error)
	Delete(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Field declares one attribute of a resource.
type Field struct {
	// Name is the accessor name, e.g. "PublicationYear".
	Name string
	// Key is the remote key. Defaults to the snake_case form of Name.
	Key string
	// Default is returned for absent keys when Factory is nil.
	Default any
	// Factory materializes a fresh value for an absent key, stored on first read.
	Factory func() any
	ReadOnly bool
}

// serverManaged keys are never sent in update bodies.
var serverManaged = map[string]struct{}{
	"id":         {},
	"urn":        {},
	"creator":    {},
	"created_at": {},
	"updated_at": {},
}

// Schema describes a resource type: its endpoint, identifier convention and
// field table.
type Schema struct {
	Endpoint  string
	URNPrefix string
	IDKey     string
	Enhance   bool

	fields []Field
	index  map[string]int
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// WithIDKey sets the key holding the identifier. Resources keyed by plain
// ids use "id"; the identifier is then used verbatim.
func WithIDKey(key string) SchemaOption {
	return func(s *Schema) { s.IDKey = key }
}

// Enhanceable marks resources that expose {endpoint}/{id}/enhance.
func Enhanceable() SchemaOption {
	return func(s *Schema) { s.Enhance = true }
}

// NewSchema builds a schema. The identifier key is always declared, read-only.
func NewSchema(endpoint, urnPrefix string, fields []Field, opts ...SchemaOption) *Schema {
	s := &Schema{
		Endpoint:  strings.Trim(endpoint, "/"),
		URNPrefix: urnPrefix,
		IDKey:     "urn",
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, f := range fields {
		s.add(f)
	}
	if _, ok := s.index[s.IDKey]; !ok {
		s.add(Field{Name: s.IDKey, Key: s.IDKey, ReadOnly: true})
	}
	return s
}

func (s *Schema) add(f Field) {
	if f.Key == "" {
		f.Key = strcase.ToSnake(f.Name)
	}
	if f.Name == "" {
		f.Name = f.Key
	}
	s.fields = append(s.fields, f)
	pos := len(s.fields) - 1
	s.index[f.Key] = pos
	s.index[f.Name] = pos
}

// Field looks a field up by accessor name or remote key.
func (s *Schema) Field(name string) (Field, bool) {
	pos, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[pos], true
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) usesURN() bool {
	return s.IDKey == "urn" && s.URNPrefix != ""
}

// Slug returns the bare identifier. For URN resources it is the segment after
// the last colon, so "urn:article:abc", "article:abc" and "abc" all yield "abc".
func (s *Schema) Slug(id string) string {
	id = strings.TrimLeft(strings.TrimSpace(id), "/")
	if !s.usesURN() {
		return id
	}
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// URN returns the canonical identifier for id.
func (s *Schema) URN(id string) string {
	slug := s.Slug(id)
	if !s.usesURN() || slug == "" {
		return slug
	}
	return s.URNPrefix + slug
}

// ItemPath returns the remote path of one resource.
func (s *Schema) ItemPath(id string) string {
	return s.Endpoint + "/" + s.URN(id)
}
