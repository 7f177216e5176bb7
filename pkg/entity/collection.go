package entity

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
)

type cacheState int

const (
	notLoaded cacheState = iota
	loaded
)

// idIndex is the cached first page of identifiers.
type idIndex struct {
	state cacheState
	ids   []string
}

// Range selects the entities between Start (inclusive) and Stop (exclusive).
// Stop is required and Step must be 0 or 1.
type Range struct {
	Start int
	Stop  *int
	Step  int
}

// Span returns the range [start, stop).
func Span(start, stop int) Range {
	return Range{Start: start, Stop: &stop}
}

// Collection is a paginated, indexable view over one resource type. T is the
// typed wrapper returned to callers.
type Collection[T any] struct {
	tr     Transport
	schema *Schema
	wrap   func(*Entity) T
	opts   []Option
	index  idIndex

	pageSize int
	logger   hclog.Logger
}

// NewCollection binds a collection to schema. wrap converts entities into the
// caller-facing type. opts also apply to every entity the collection returns.
func NewCollection[T any](tr Transport, schema *Schema, wrap func(*Entity) T, opts ...Option) *Collection[T] {
	st := newSettings(opts)
	return &Collection[T]{
		tr:       tr,
		schema:   schema,
		wrap:     wrap,
		opts:     opts,
		pageSize: st.pageSize,
		logger:   st.logger.Named(schema.Endpoint),
	}
}

// Schema returns the collection's schema.
func (c *Collection[T]) Schema() *Schema { return c.schema }

func (c *Collection[T]) fetchIDs(ctx context.Context, limit, offset int) ([]string, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	body, err := c.tr.Get(ctx, c.schema.Endpoint, q)
	if err != nil {
		return nil, err
	}
	return wfapi.ParseIDList(body, c.schema.IDKey)
}

func (c *Collection[T]) ensureIndex(ctx context.Context) error {
	if c.index.state == loaded {
		return nil
	}
	ids, err := c.fetchIDs(ctx, c.pageSize, 0)
	if err != nil {
		return err
	}
	c.index = idIndex{state: loaded, ids: ids}
	c.logger.Debug("index loaded", "count", len(ids))
	return nil
}

func (c *Collection[T]) cached(urn string) bool {
	for _, id := range c.index.ids {
		if id == urn {
			return true
		}
	}
	return false
}

// Reset drops the cached identifiers.
func (c *Collection[T]) Reset() {
	c.index = idIndex{}
}

// Loaded reports whether the identifier cache has been populated.
func (c *Collection[T]) Loaded() bool {
	return c.index.state == loaded
}

// IDs returns the cached identifiers, loading the first page if needed.
func (c *Collection[T]) IDs(ctx context.Context) ([]string, error) {
	if err := c.ensureIndex(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(c.index.ids))
	copy(out, c.index.ids)
	return out, nil
}

// Slugs returns the cached identifiers without their prefix.
func (c *Collection[T]) Slugs(ctx context.Context) ([]string, error) {
	ids, err := c.IDs(ctx)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		ids[i] = c.schema.Slug(id)
	}
	return ids, nil
}

// Len returns the number of cached identifiers. Only the first page is
// cached, so this is at most the page size, not the remote total.
func (c *Collection[T]) Len(ctx context.Context) (int, error) {
	if err := c.ensureIndex(ctx); err != nil {
		return 0, err
	}
	return len(c.index.ids), nil
}

// All iterates over the cached identifiers, fetching each entity in turn.
func (c *Collection[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := c.ensureIndex(ctx); err != nil {
			yield(zero, err)
			return
		}
		ids := append([]string(nil), c.index.ids...)
		for _, id := range ids {
			item, err := c.Get(ctx, id)
			if !yield(item, err) {
				return
			}
		}
	}
}

// At returns the entity at position i of the cached page. Negative positions
// count from the end.
func (c *Collection[T]) At(ctx context.Context, i int) (T, error) {
	var zero T
	if err := c.ensureIndex(ctx); err != nil {
		return zero, err
	}
	n := len(c.index.ids)
	pos := i
	if pos < 0 {
		pos += n
	}
	if pos < 0 || pos >= n {
		return zero, apierror.Local(fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, n))
	}
	return c.Get(ctx, c.index.ids[pos])
}

// Slice fetches the identifiers in r directly from the API and returns lazy
// entities. The cache is neither used nor updated.
func (c *Collection[T]) Slice(ctx context.Context, r Range) ([]T, error) {
	if r.Step != 0 && r.Step != 1 {
		return nil, apierror.Local(fmt.Errorf("%w: got %d", ErrUnsupportedStep, r.Step))
	}
	if r.Stop == nil {
		return nil, apierror.Local(ErrOpenRange)
	}
	if r.Start < 0 || *r.Stop < 0 {
		return nil, apierror.Local(ErrNegativeRange)
	}
	limit := *r.Stop - r.Start
	if limit <= 0 {
		return []T{}, nil
	}

	ids, err := c.fetchIDs(ctx, limit, r.Start)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.Lazy(id))
	}
	return out, nil
}

// Lookup resolves a URN or slug. Cached identifiers are tried first; anything
// else is fetched directly, so resources created after the cache was loaded
// are still found.
func (c *Collection[T]) Lookup(ctx context.Context, key string) (T, error) {
	if err := c.ensureIndex(ctx); err != nil {
		var zero T
		return zero, err
	}
	if urn := c.schema.URN(key); c.cached(urn) {
		return c.Get(ctx, urn)
	}
	return c.Get(ctx, key)
}

// Match returns every cached entity whose identifier contains substr,
// ignoring case. No match is a NotFound error.
func (c *Collection[T]) Match(ctx context.Context, substr string) ([]T, error) {
	if err := c.ensureIndex(ctx); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimLeft(substr, "/"))
	var matches []string
	for _, id := range c.index.ids {
		if strings.Contains(strings.ToLower(id), q) {
			matches = append(matches, id)
		}
	}
	if len(matches) == 0 {
		return nil, &apierror.Error{
			Kind:   apierror.KindNotFound,
			Detail: fmt.Sprintf("no %s matching %q", c.schema.Endpoint, substr),
		}
	}
	out := make([]T, 0, len(matches))
	for _, id := range matches {
		item, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Get fetches one entity by identifier, bypassing the cache.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	e, err := Fetch(ctx, c.tr, c.schema, id, c.opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.wrap(e), nil
}

// Lazy returns an identifier-only entity without any request.
func (c *Collection[T]) Lazy(id string) T {
	return c.wrap(NewLazy(c.tr, c.schema, id, c.opts...))
}

// Wrap adopts data already fetched from the API.
func (c *Collection[T]) Wrap(data map[string]any) T {
	e := New(c.tr, c.schema, data, c.opts...)
	e.lazy = false
	return c.wrap(e)
}

// Create creates a resource. A loaded cache gains the new identifier; an
// unloaded cache stays unloaded.
func (c *Collection[T]) Create(ctx context.Context, id string, fields map[string]any) (T, error) {
	e, err := Create(ctx, c.tr, c.schema, id, fields, c.opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	if c.index.state == loaded {
		urn := e.ID()
		if urn == "" {
			urn = c.schema.URN(id)
		}
		if !c.cached(urn) {
			c.index.ids = append(c.index.ids, urn)
		}
	}
	return c.wrap(e), nil
}
