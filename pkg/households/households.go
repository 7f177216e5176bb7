// Package households exposes households, their members and member profiles.
//
// Households and members are keyed by plain ids rather than URNs. Field
// writes on Household and Member sync to the API immediately unless the
// service was built with entity.WithSync(false).
package households

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
)

const (
	HouseholdsEndpoint = "households"
	MembersEndpoint    = "members"

	defaultLimit = 100
)

// HouseholdSchema is the household field table.
var HouseholdSchema = entity.NewSchema(HouseholdsEndpoint, "", []entity.Field{
	{Name: "ID", Key: "id", ReadOnly: true},
	{Name: "Name", Default: ""},
	{Name: "OwnerID", Key: "owner_id", Default: "", ReadOnly: true},
	{Name: "Region"},
	{Name: "Metadata"},
	{Name: "CreatedAt", ReadOnly: true},
	{Name: "UpdatedAt", ReadOnly: true},
}, entity.WithIDKey("id"))

// Households groups the household endpoints.
type Households struct {
	tr   entity.Transport
	opts []entity.Option
}

// NewHouseholds binds the household endpoints to tr. opts apply to every
// returned Household.
func NewHouseholds(tr entity.Transport, opts ...entity.Option) *Households {
	return &Households{tr: tr, opts: opts}
}

func (h *Households) wrap(data map[string]any) *Household {
	e := entity.New(h.tr, HouseholdSchema, data, h.opts...)
	return &Household{Entity: e, tr: h.tr, opts: h.opts}
}

// Me returns the household owned by the authenticated user.
func (h *Households) Me(ctx context.Context) (*Household, error) {
	body, err := h.tr.Get(ctx, HouseholdsEndpoint+"/me", nil)
	if err != nil {
		return nil, err
	}
	data, err := wfapi.DecodeObject(body)
	if err != nil {
		return nil, err
	}
	return h.wrap(data), nil
}

// Get fetches a household by id.
func (h *Households) Get(ctx context.Context, id string) (*Household, error) {
	e, err := entity.Fetch(ctx, h.tr, HouseholdSchema, id, h.opts...)
	if err != nil {
		return nil, err
	}
	return &Household{Entity: e, tr: h.tr, opts: h.opts}, nil
}

// List returns one page of households. Admin only. A limit of zero uses the
// default page size.
func (h *Households) List(ctx context.Context, limit, offset int) ([]*Household, error) {
	items, err := getObjects(ctx, h.tr, HouseholdsEndpoint, pageQuery(limit, offset))
	if err != nil {
		return nil, err
	}
	out := make([]*Household, 0, len(items))
	for _, item := range items {
		out = append(out, h.wrap(item))
	}
	return out, nil
}

// Create validates in and creates a household, optionally with its first
// members.
func (h *Households) Create(ctx context.Context, in HouseholdInput) (*Household, error) {
	if err := in.Validate(); err != nil {
		return nil, localValidation(err)
	}
	e, err := entity.Create(ctx, h.tr, HouseholdSchema, "", in.payload(), h.opts...)
	if err != nil {
		return nil, err
	}
	return &Household{Entity: e, tr: h.tr, opts: h.opts}, nil
}

// Update patches a household by id and returns the updated household.
func (h *Households) Update(ctx context.Context, id string, fields map[string]any) (*Household, error) {
	body, err := h.tr.Patch(ctx, HouseholdSchema.ItemPath(id), fields)
	if err != nil {
		return nil, err
	}
	data, err := wfapi.DecodeObject(body)
	if err != nil {
		return nil, err
	}
	return h.wrap(data), nil
}

// Delete removes a household by id.
func (h *Households) Delete(ctx context.Context, id string) error {
	_, err := h.tr.Delete(ctx, HouseholdSchema.ItemPath(id), nil)
	return err
}

// Household is a proxy for one household.
type Household struct {
	*entity.Entity
	tr   entity.Transport
	opts []entity.Option
}

func (h *Household) Name(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, h.Entity, "name")
}

func (h *Household) SetName(ctx context.Context, v string) error {
	return h.Set(ctx, "name", v)
}

func (h *Household) OwnerID(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, h.Entity, "owner_id")
}

func (h *Household) Region(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, h.Entity, "region")
}

func (h *Household) SetRegion(ctx context.Context, v string) error {
	return h.Set(ctx, "region", v)
}

func (h *Household) Metadata(ctx context.Context) (map[string]any, error) {
	return entity.Value[map[string]any](ctx, h.Entity, "metadata")
}

func (h *Household) SetMetadata(ctx context.Context, v map[string]any) error {
	return h.Set(ctx, "metadata", v)
}

// Members lists the household's members.
func (h *Household) Members(ctx context.Context) ([]*Member, error) {
	items, err := getObjects(ctx, h.tr, HouseholdSchema.ItemPath(h.ID())+"/members", nil)
	if err != nil {
		return nil, err
	}
	members := NewMembers(h.tr, h.opts...)
	out := make([]*Member, 0, len(items))
	for _, item := range items {
		out = append(out, members.wrap(item))
	}
	return out, nil
}

// AddMember creates a member in this household. in.HouseholdID is ignored.
func (h *Household) AddMember(ctx context.Context, in MemberInput) (*Member, error) {
	in.HouseholdID = h.ID()
	return NewMembers(h.tr, h.opts...).Create(ctx, in)
}

// Record is a plain snapshot of a household.
type Record struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"owner_id"`
	Region    string         `json:"region"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Record loads the household if needed and returns a typed snapshot.
func (h *Household) Record(ctx context.Context) (Record, error) {
	var r Record
	err := h.Decode(ctx, &r)
	return r, err
}

func pageQuery(limit, offset int) url.Values {
	if limit <= 0 {
		limit = defaultLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}

// getObjects GETs a list of objects. A result that is not a list reads as
// empty.
func getObjects(ctx context.Context, tr entity.Transport, path string, q url.Values) ([]map[string]any, error) {
	body, err := tr.Get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	payload, err := wfapi.ExtractResult(body)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, nil
	}
	return items, nil
}
