package households

import (
	"context"

	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
)

const (
	KeyDietaryGroups          = "dietary_groups"
	KeyNutritionalPreferences = "nutritional_preferences"
	KeyProperties             = "properties"
)

var profileKinds = map[string]entity.ValueKind{
	KeyDietaryGroups:          entity.KindList,
	KeyNutritionalPreferences: entity.KindMap,
	KeyProperties:             entity.KindMap,
}

// MemberProfile is a member's dietary profile. Arbitrary keys are available
// through the embedded Profile.
type MemberProfile struct {
	*entity.Profile
}

// DietaryGroups returns the member's dietary groups, e.g. "vegan".
func (p *MemberProfile) DietaryGroups() ([]string, error) {
	var out []string
	err := entity.DecodeValue(p.Get(KeyDietaryGroups), &out)
	return out, err
}

func (p *MemberProfile) SetDietaryGroups(ctx context.Context, groups []string) error {
	return p.Set(ctx, KeyDietaryGroups, groups)
}

func (p *MemberProfile) NutritionalPreferences() (map[string]any, error) {
	var out map[string]any
	err := entity.DecodeValue(p.Get(KeyNutritionalPreferences), &out)
	return out, err
}

func (p *MemberProfile) SetNutritionalPreferences(ctx context.Context, prefs map[string]any) error {
	return p.Set(ctx, KeyNutritionalPreferences, prefs)
}

func (p *MemberProfile) Properties() (map[string]any, error) {
	var out map[string]any
	err := entity.DecodeValue(p.Get(KeyProperties), &out)
	return out, err
}

func (p *MemberProfile) SetProperties(ctx context.Context, props map[string]any) error {
	return p.Set(ctx, KeyProperties, props)
}
