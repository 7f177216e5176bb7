package households

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
)

// ErrInvalidInput wraps validation failures detected before any request.
var ErrInvalidInput = errors.New("households: invalid input")

// HouseholdInput is the body of a household creation request.
type HouseholdInput struct {
	Name     string
	Region   string
	Metadata map[string]any
	Members  []MemberInput
}

func (in HouseholdInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Members),
	)
}

func (in HouseholdInput) payload() map[string]any {
	body := map[string]any{"name": in.Name}
	if in.Region != "" {
		body["region"] = in.Region
	}
	if len(in.Metadata) > 0 {
		body["metadata"] = in.Metadata
	}
	if len(in.Members) > 0 {
		members := make([]map[string]any, 0, len(in.Members))
		for _, m := range in.Members {
			members = append(members, m.payload())
		}
		body["members"] = members
	}
	return body
}

// MemberInput is the body of a member creation request. HouseholdID is
// required when creating through Members and filled in by AddMember.
type MemberInput struct {
	HouseholdID string
	Name        string
	// AgeGroup is one of child, teen, adult, senior, or another server-known group.
	AgeGroup string
	ImageURL string
}

func (in MemberInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.AgeGroup, validation.Required),
	)
}

func (in MemberInput) validateForCreate() error {
	if err := in.Validate(); err != nil {
		return err
	}
	return validation.Errors{
		"HouseholdID": validation.Validate(in.HouseholdID, validation.Required),
	}.Filter()
}

func (in MemberInput) payload() map[string]any {
	body := map[string]any{"name": in.Name, "age_group": in.AgeGroup}
	if in.HouseholdID != "" {
		body["household_id"] = in.HouseholdID
	}
	if in.ImageURL != "" {
		body["image_url"] = in.ImageURL
	}
	return body
}

func localValidation(err error) error {
	return apierror.Localf("%w: %v", ErrInvalidInput, err)
}
