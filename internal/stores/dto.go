package stores

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-mobile/pkg/cache/models"
	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	"github.com/angelmondragon/packfinderz-mobile/pkg/types"
)

// CreateStoreInput carries a new storefront. The id is caller-assigned when
// present so offline creates replay idempotently; a zero id is generated.
type CreateStoreInput struct {
	ID          uuid.UUID
	Type        enums.StoreType `json:"type" validate:"required,oneof=buyer vendor"`
	CompanyName string          `json:"company_name" validate:"required,max=120"`
	Description *string         `json:"description,omitempty"`
	Phone       *string         `json:"phone,omitempty"`
	Email       *string         `json:"email,omitempty" validate:"omitempty,email"`
	Address     types.Address   `json:"address"`
	Logo        []byte          `json:"-"`
	LogoName    *string         `json:"-"`
}

// UpdateStoreInput carries a partial storefront edit. Nil fields are left
// unchanged.
type UpdateStoreInput struct {
	CompanyName *string        `json:"company_name,omitempty" validate:"omitempty,max=120"`
	Description *string        `json:"description,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	Email       *string        `json:"email,omitempty" validate:"omitempty,email"`
	Address     *types.Address `json:"address,omitempty"`
	Logo        []byte         `json:"-"`
	LogoName    *string        `json:"-"`
}

func (in UpdateStoreInput) apply(record models.StoreRecord) models.StoreRecord {
	if in.CompanyName != nil {
		record.CompanyName = *in.CompanyName
	}
	if in.Description != nil {
		record.Description = in.Description
	}
	if in.Phone != nil {
		record.Phone = in.Phone
	}
	if in.Email != nil {
		record.Email = in.Email
	}
	if in.Address != nil {
		record.Address = in.Address.Normalize()
	}
	return record
}
