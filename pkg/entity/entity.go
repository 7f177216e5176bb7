package entity

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
)

// DefaultPageSize is the number of identifiers a Collection caches.
const DefaultPageSize = 100

type settings struct {
	sync     bool
	logger   hclog.Logger
	pageSize int
}

func newSettings(opts []Option) settings {
	s := settings{sync: true, logger: hclog.NewNullLogger(), pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures entities, collections and profiles.
type Option func(*settings)

// WithSync controls whether field writes are pushed immediately. Default true.
func WithSync(sync bool) Option {
	return func(s *settings) { s.sync = sync }
}

// WithLogger sets the logger used to trace remote calls.
func WithLogger(l hclog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPageSize overrides DefaultPageSize for collections.
func WithPageSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// Entity is a proxy for a single remote resource.
type Entity struct {
	tr     Transport
	schema *Schema
	data   map[string]any
	dirty  map[string]struct{}
	sync   bool
	lazy   bool
	logger hclog.Logger
}

// New wraps data already obtained from the API. Data holding only the
// identifier yields a lazy entity.
func New(tr Transport, schema *Schema, data map[string]any, opts ...Option) *Entity {
	st := newSettings(opts)
	if data == nil {
		data = make(map[string]any)
	}
	e := &Entity{
		tr:     tr,
		schema: schema,
		data:   data,
		dirty:  make(map[string]struct{}),
		sync:   st.sync,
		logger: st.logger.Named(schema.Endpoint),
	}
	_, hasID := data[schema.IDKey]
	e.lazy = hasID && len(data) == 1
	return e
}

// NewLazy returns an entity holding only its identifier. The first read of
// any other field fetches it.
func NewLazy(tr Transport, schema *Schema, id string, opts ...Option) *Entity {
	return New(tr, schema, map[string]any{schema.IDKey: schema.URN(id)}, opts...)
}

// Fetch retrieves one resource by identifier (URN or slug).
func Fetch(ctx context.Context, tr Transport, schema *Schema, id string, opts ...Option) (*Entity, error) {
	if schema.Slug(id) == "" {
		return nil, apierror.Local(ErrNoIdentifier)
	}
	body, err := tr.Get(ctx, schema.ItemPath(id), nil)
	if err != nil {
		return nil, err
	}
	data, err := wfapi.DecodeObject(body)
	if err != nil {
		return nil, err
	}
	e := New(tr, schema, data, opts...)
	e.lazy = false
	return e, nil
}

// Create creates a resource and returns its proxy. The request carries the
// canonical URN (or plain id) under the identifier key.
func Create(ctx context.Context, tr Transport, schema *Schema, id string, fields map[string]any, opts ...Option) (*Entity, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	if id != "" {
		payload[schema.IDKey] = schema.URN(id)
	}
	body, err := tr.Post(ctx, schema.Endpoint, payload)
	if err != nil {
		return nil, err
	}
	data, err := wfapi.DecodeObject(body)
	if err != nil {
		return nil, err
	}
	e := New(tr, schema, data, opts...)
	e.lazy = false
	return e, nil
}

// Schema returns the entity's schema.
func (e *Entity) Schema() *Schema { return e.schema }

// ID returns the identifier as held in data.
func (e *Entity) ID() string {
	id, _ := e.data[e.schema.IDKey].(string)
	return id
}

// URN returns the canonical URN (or plain id).
func (e *Entity) URN() string {
	return e.schema.URN(e.ID())
}

// Slug returns the identifier without its prefix.
func (e *Entity) Slug() string {
	return e.schema.Slug(e.ID())
}

// IsLazy reports whether the entity has not been loaded yet.
func (e *Entity) IsLazy() bool { return e.lazy }

// Sync reports whether writes are pushed immediately.
func (e *Entity) Sync() bool { return e.sync }

// SetSync enables or disables auto-sync on write.
func (e *Entity) SetSync(sync bool) { e.sync = sync }

// Dirty returns the keys written since the last save, sorted.
func (e *Entity) Dirty() []string {
	keys := make([]string, 0, len(e.dirty))
	for k := range e.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Data returns a shallow copy of the local data.
func (e *Entity) Data() map[string]any {
	out := make(map[string]any, len(e.data))
	for k, v := range e.data {
		out[k] = v
	}
	return out
}

// Raw returns the stored value for a remote key without defaults or fetching.
func (e *Entity) Raw(key string) (any, bool) {
	v, ok := e.data[key]
	return v, ok
}

// Get reads a declared field. Absent keys resolve to the field's factory
// (stored into data) or its static default.
func (e *Entity) Get(ctx context.Context, name string) (any, error) {
	f, ok := e.schema.Field(name)
	if !ok {
		return nil, apierror.Local(fmt.Errorf("%w: %q", ErrUnknownField, name))
	}
	if f.Key != e.schema.IDKey {
		if err := e.ensureLoaded(ctx); err != nil {
			return nil, err
		}
	}
	if v, ok := e.data[f.Key]; ok {
		return v, nil
	}
	if f.Factory != nil {
		v := f.Factory()
		e.data[f.Key] = v
		return v, nil
	}
	return f.Default, nil
}

// Set writes a declared field and marks it dirty. With sync enabled the
// dirty fields are saved before Set returns.
func (e *Entity) Set(ctx context.Context, name string, value any) error {
	f, ok := e.schema.Field(name)
	if !ok {
		return apierror.Local(fmt.Errorf("%w: %q", ErrUnknownField, name))
	}
	if f.ReadOnly {
		return apierror.Local(fmt.Errorf("%w: %q", ErrReadOnlyField, f.Name))
	}
	e.data[f.Key] = value
	e.dirty[f.Key] = struct{}{}
	if !e.sync {
		return nil
	}
	return e.Save(ctx, true)
}

// Batch suspends auto-sync while fn runs, then saves the dirty fields in a
// single request.
func (e *Entity) Batch(ctx context.Context, fn func(*Entity) error) error {
	prev := e.sync
	e.sync = false
	err := fn(e)
	e.sync = prev
	if err != nil {
		return err
	}
	return e.Save(ctx, true)
}

func (e *Entity) ensureLoaded(ctx context.Context) error {
	if !e.lazy {
		return nil
	}
	pending := make(map[string]any, len(e.dirty))
	for k := range e.dirty {
		pending[k] = e.data[k]
	}
	if err := e.Refresh(ctx); err != nil {
		return err
	}
	// Unsaved writes made on the stub survive the load.
	for k, v := range pending {
		e.data[k] = v
		e.dirty[k] = struct{}{}
	}
	return nil
}

func (e *Entity) path() (string, error) {
	id := e.ID()
	if e.schema.Slug(id) == "" {
		return "", apierror.Local(ErrNoIdentifier)
	}
	return e.schema.ItemPath(id), nil
}

// Refresh reloads the entity, replacing local data. Unsaved changes are
// discarded.
func (e *Entity) Refresh(ctx context.Context) error {
	path, err := e.path()
	if err != nil {
		return err
	}
	body, err := e.tr.Get(ctx, path, nil)
	if err != nil {
		return err
	}
	data, err := wfapi.DecodeObject(body)
	if err != nil {
		return err
	}
	e.data = data
	e.dirty = make(map[string]struct{})
	e.lazy = false
	return nil
}

// Save persists local changes with PATCH. With onlyDirty, only fields
// written since the last save are sent and an empty dirty set makes no
// request. Server-managed keys are never sent.
func (e *Entity) Save(ctx context.Context, onlyDirty bool) error {
	if onlyDirty && len(e.dirty) == 0 {
		return nil
	}

	body := make(map[string]any)
	if onlyDirty {
		for k := range e.dirty {
			if _, managed := serverManaged[k]; managed || k == e.schema.IDKey {
				continue
			}
			body[k] = e.data[k]
		}
	} else {
		for k, v := range e.data {
			if _, managed := serverManaged[k]; managed || k == e.schema.IDKey {
				continue
			}
			body[k] = v
		}
	}
	if len(body) == 0 {
		// Only server-managed keys were dirty.
		e.dirty = make(map[string]struct{})
		return nil
	}

	path, err := e.path()
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := e.tr.Patch(ctx, path, body)
	if err != nil {
		return err
	}
	e.logger.Trace("saved", "id", e.ID(), "fields", len(body), "duration", time.Since(start))

	data, err := wfapi.DecodeObject(resp)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		e.data = data
		e.lazy = false
	}
	e.dirty = make(map[string]struct{})
	return nil
}

// Delete removes the resource remotely and clears local state. The entity
// must not be reused afterwards.
func (e *Entity) Delete(ctx context.Context) error {
	path, err := e.path()
	if err != nil {
		return err
	}
	if _, err := e.tr.Delete(ctx, path, nil); err != nil {
		return err
	}
	e.data = make(map[string]any)
	e.dirty = make(map[string]struct{})
	e.lazy = false
	return nil
}

// Enhance asks the named agent to enrich the resource and replaces local
// data with the enhanced version.
func (e *Entity) Enhance(ctx context.Context, agent string, fields map[string]any) error {
	if !e.schema.Enhance {
		return apierror.Local(ErrEnhanceUnsupported)
	}
	path, err := e.path()
	if err != nil {
		return err
	}
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["agent"] = agent

	resp, err := e.tr.Post(ctx, path+"/enhance", payload)
	if err != nil {
		return err
	}
	data, err := wfapi.DecodeObject(resp)
	if err != nil {
		return err
	}
	e.data = data
	e.dirty = make(map[string]struct{})
	e.lazy = false
	return nil
}

// Decode loads the entity if needed and decodes its data into out, matching
// struct fields by their json tags.
func (e *Entity) Decode(ctx context.Context, out any) error {
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	return DecodeValue(e.data, out)
}

// timeLayouts are tried in order when a string decodes into time.Time. The
// API emits both zoned and naive ISO 8601 timestamps; naive ones read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// stringToTime leaves the target zero when no layout matches.
func stringToTime(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, nil
}

// DecodeValue converts a decoded JSON value into out. Struct fields match by
// json tag, scalars convert weakly and ISO 8601 strings become time.Time.
func DecodeValue(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       stringToTime,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// Value reads a field and converts it to T. Lists arrive from JSON as []any,
// so Value[[]string] converts element-wise; a nil value yields T's zero value.
func Value[T any](ctx context.Context, e *Entity, name string) (T, error) {
	var out T
	v, err := e.Get(ctx, name)
	if err != nil || v == nil {
		return out, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	if err := DecodeValue(v, &out); err != nil {
		return out, fmt.Errorf("entity: decode %q: %w", name, err)
	}
	return out, nil
}
