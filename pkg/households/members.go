package households

import (
	"context"
	"time"

	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
)

// MemberSchema is the household member field table.
var MemberSchema = entity.NewSchema(MembersEndpoint, "", []entity.Field{
	{Name: "ID", Key: "id", ReadOnly: true},
	{Name: "HouseholdID", Key: "household_id", Default: "", ReadOnly: true},
	{Name: "Name", Default: ""},
	{Name: "AgeGroup", Default: ""},
	{Name: "ImageURL", Key: "image_url"},
	{Name: "CreatedAt", ReadOnly: true},
	{Name: "UpdatedAt", ReadOnly: true},
}, entity.WithIDKey("id"))

// Members groups the member endpoints.
type Members struct {
	tr   entity.Transport
	opts []entity.Option
}

// NewMembers binds the member endpoints to tr.
func NewMembers(tr entity.Transport, opts ...entity.Option) *Members {
	return &Members{tr: tr, opts: opts}
}

func (m *Members) wrap(data map[string]any) *Member {
	return &Member{Entity: entity.New(m.tr, MemberSchema, data, m.opts...), tr: m.tr, opts: m.opts}
}

// Get fetches a member by id.
func (m *Members) Get(ctx context.Context, id string) (*Member, error) {
	e, err := entity.Fetch(ctx, m.tr, MemberSchema, id, m.opts...)
	if err != nil {
		return nil, err
	}
	return &Member{Entity: e, tr: m.tr, opts: m.opts}, nil
}

// List returns one page of a household's members.
func (m *Members) List(ctx context.Context, householdID string, limit, offset int) ([]*Member, error) {
	q := pageQuery(limit, offset)
	q.Set("household_id", householdID)
	items, err := getObjects(ctx, m.tr, MembersEndpoint, q)
	if err != nil {
		return nil, err
	}
	out := make([]*Member, 0, len(items))
	for _, item := range items {
		out = append(out, m.wrap(item))
	}
	return out, nil
}

// Create validates in and creates a member.
func (m *Members) Create(ctx context.Context, in MemberInput) (*Member, error) {
	if err := in.validateForCreate(); err != nil {
		return nil, localValidation(err)
	}
	e, err := entity.Create(ctx, m.tr, MemberSchema, "", in.payload(), m.opts...)
	if err != nil {
		return nil, err
	}
	return &Member{Entity: e, tr: m.tr, opts: m.opts}, nil
}

// Delete removes a member by id.
func (m *Members) Delete(ctx context.Context, id string) error {
	_, err := m.tr.Delete(ctx, MemberSchema.ItemPath(id), nil)
	return err
}

// Member is a proxy for one household member.
type Member struct {
	*entity.Entity
	tr      entity.Transport
	opts    []entity.Option
	profile *MemberProfile
}

func (m *Member) Name(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, m.Entity, "name")
}

func (m *Member) SetName(ctx context.Context, v string) error {
	return m.Set(ctx, "name", v)
}

func (m *Member) AgeGroup(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, m.Entity, "age_group")
}

func (m *Member) SetAgeGroup(ctx context.Context, v string) error {
	return m.Set(ctx, "age_group", v)
}

func (m *Member) HouseholdID(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, m.Entity, "household_id")
}

func (m *Member) ImageURL(ctx context.Context) (string, error) {
	return entity.Value[string](ctx, m.Entity, "image_url")
}

func (m *Member) SetImageURL(ctx context.Context, v string) error {
	return m.Set(ctx, "image_url", v)
}

func (m *Member) profilePath() string {
	return MemberSchema.ItemPath(m.ID()) + "/profile"
}

// Profile returns the member's profile, fetching it on first use. A member
// without a stored profile gets an empty one that is still bound, so writes
// create it remotely.
func (m *Member) Profile(ctx context.Context) (*MemberProfile, error) {
	if m.profile != nil {
		return m.profile, nil
	}
	p := entity.NewProfile(m.tr, m.profilePath(), profileKinds, m.opts...)
	body, err := m.tr.Get(ctx, m.profilePath(), nil)
	switch {
	case apierror.IsNotFound(err):
		p.Load(nil)
	case err != nil:
		return nil, err
	default:
		data, err := wfapi.DecodeObject(body)
		if err != nil {
			return nil, err
		}
		p.Load(data)
	}
	m.profile = &MemberProfile{Profile: p}
	return m.profile, nil
}

// Refresh reloads the member and drops the cached profile.
func (m *Member) Refresh(ctx context.Context) error {
	if err := m.Entity.Refresh(ctx); err != nil {
		return err
	}
	m.profile = nil
	return nil
}

// MemberRecord is a plain snapshot of a member.
type MemberRecord struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Name        string    `json:"name"`
	AgeGroup    string    `json:"age_group"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record loads the member if needed and returns a typed snapshot.
func (m *Member) Record(ctx context.Context) (MemberRecord, error) {
	var r MemberRecord
	err := m.Decode(ctx, &r)
	return r, err
}
