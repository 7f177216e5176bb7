package entity_test

import (
	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
	"github.com/wisefood/wisefood_sdk_go/pkg/entity/mock"
)

func newFake() *mock.Transport { return mock.New() }

func articleSchema() *entity.Schema {
	return entity.NewSchema("articles", "urn:article:", []entity.Field{
		{Name: "ID", ReadOnly: true},
		{Name: "Title", Default: ""},
		{Name: "Status", Default: "active"},
		{Name: "Description"},
		{Name: "Authors", Factory: func() any { return []any{} }},
		{Name: "Extras", Factory: func() any { return map[string]any{} }},
		{Name: "PublicationYear"},
		{Name: "Creator", ReadOnly: true},
		{Name: "CreatedAt", ReadOnly: true},
		{Name: "UpdatedAt", ReadOnly: true},
	}, entity.Enhanceable())
}

func identity(e *entity.Entity) *entity.Entity { return e }
