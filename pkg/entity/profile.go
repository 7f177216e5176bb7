package entity

import (
	"context"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
)

// ProfileState is the lifecycle state of a Profile.
type ProfileState int

const (
	// ProfileUnbound has no owner path; remote operations fail with ErrUnbound.
	ProfileUnbound ProfileState = iota
	// ProfileUnloaded knows its owner but holds no data yet.
	ProfileUnloaded
	// ProfileLoaded holds data, possibly with pending writes.
	ProfileLoaded
	// ProfileDeleted was deleted remotely; its data is cleared.
	ProfileDeleted
)

func (s ProfileState) String() string {
	switch s {
	case ProfileUnbound:
		return "unbound"
	case ProfileUnloaded:
		return "unloaded"
	case ProfileLoaded:
		return "loaded"
	case ProfileDeleted:
		return "deleted"
	}
	return "unknown"
}

// ValueKind selects the empty default of a recognized profile key.
type ValueKind int

const (
	KindList ValueKind = iota + 1
	KindMap
)

// Profile is a dirty-tracked key/value proxy for a nested sub-resource such
// as members/{id}/profile. Unlike Entity it never fetches on read; its owner
// loads it once.
type Profile struct {
	tr     Transport
	path   string
	kinds  map[string]ValueKind
	data   map[string]any
	dirty  map[string]struct{}
	sync   bool
	state  ProfileState
	logger hclog.Logger
}

// NewProfile returns a profile bound to path. An empty path or nil transport
// yields an unbound profile. kinds lists the recognized keys whose unset
// value reads as an empty list or map.
func NewProfile(tr Transport, path string, kinds map[string]ValueKind, opts ...Option) *Profile {
	st := newSettings(opts)
	p := &Profile{
		tr:     tr,
		path:   path,
		kinds:  kinds,
		data:   make(map[string]any),
		dirty:  make(map[string]struct{}),
		sync:   st.sync,
		state:  ProfileUnloaded,
		logger: st.logger.Named("profile"),
	}
	if tr == nil || path == "" {
		p.state = ProfileUnbound
	}
	return p
}

// Load replaces the profile data with data obtained by the owner.
func (p *Profile) Load(data map[string]any) {
	p.data = make(map[string]any, len(data))
	for k, v := range data {
		p.data[k] = v
	}
	p.dirty = make(map[string]struct{})
	if p.state != ProfileUnbound {
		p.state = ProfileLoaded
	}
}

// State returns the lifecycle state.
func (p *Profile) State() ProfileState { return p.state }

// Path returns the remote path, empty when unbound.
func (p *Profile) Path() string { return p.path }

// SetSync enables or disables auto-sync on write.
func (p *Profile) SetSync(sync bool) { p.sync = sync }

// Get returns the value stored under name. Unset recognized keys return an
// empty list or map; other unset keys return nil. Get never fetches.
func (p *Profile) Get(name string) any {
	if v, ok := p.data[name]; ok {
		return v
	}
	switch p.kinds[name] {
	case KindList:
		return []any{}
	case KindMap:
		return map[string]any{}
	}
	return nil
}

// Has reports whether name is set locally.
func (p *Profile) Has(name string) bool {
	_, ok := p.data[name]
	return ok
}

// Set stores value and marks it dirty. With sync enabled only this key is
// sent to the API.
func (p *Profile) Set(ctx context.Context, name string, value any) error {
	p.data[name] = value
	p.dirty[name] = struct{}{}
	if !p.sync {
		return nil
	}
	return p.patch(ctx, map[string]any{name: value})
}

// Save sends every dirty key. An empty dirty set makes no request.
func (p *Profile) Save(ctx context.Context) error {
	if len(p.dirty) == 0 {
		return nil
	}
	body := make(map[string]any, len(p.dirty))
	for k := range p.dirty {
		body[k] = p.data[k]
	}
	return p.patch(ctx, body)
}

func (p *Profile) patch(ctx context.Context, body map[string]any) error {
	if p.state == ProfileUnbound {
		return apierror.Local(ErrUnbound)
	}
	resp, err := p.tr.Patch(ctx, p.path, body)
	if err != nil {
		return err
	}
	p.logger.Trace("saved", "path", p.path, "fields", len(body))
	data, err := wfapi.DecodeObject(resp)
	if err != nil {
		return err
	}
	for k := range body {
		delete(p.dirty, k)
	}
	if len(data) > 0 {
		// Writes not part of this request stay pending.
		for k := range p.dirty {
			data[k] = p.data[k]
		}
		p.data = data
	}
	p.state = ProfileLoaded
	return nil
}

// Refresh reloads the profile, discarding unsaved writes.
func (p *Profile) Refresh(ctx context.Context) error {
	if p.state == ProfileUnbound {
		return apierror.Local(ErrUnbound)
	}
	body, err := p.tr.Get(ctx, p.path, nil)
	if err != nil {
		return err
	}
	data, err := wfapi.DecodeObject(body)
	if err != nil {
		return err
	}
	p.Load(data)
	return nil
}

// Delete removes the profile remotely and clears local data.
func (p *Profile) Delete(ctx context.Context) error {
	if p.state == ProfileUnbound {
		return apierror.Local(ErrUnbound)
	}
	if _, err := p.tr.Delete(ctx, p.path, nil); err != nil {
		return err
	}
	p.data = make(map[string]any)
	p.dirty = make(map[string]struct{})
	p.state = ProfileDeleted
	return nil
}

// Dirty returns the keys written since the last save, sorted.
func (p *Profile) Dirty() []string {
	keys := make([]string, 0, len(p.dirty))
	for k := range p.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Data returns a shallow copy of the profile data.
func (p *Profile) Data() map[string]any {
	out := make(map[string]any, len(p.data))
	for k, v := range p.data {
		out[k] = v
	}
	return out
}
