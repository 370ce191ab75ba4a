package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	"github.com/angelmondragon/packfinderz-mobile/pkg/types"
)

// StoreRecord is the cached copy of a storefront. A raw logo payload captured
// while offline rides along with the row until the coordinator uploads it.
type StoreRecord struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Type            enums.StoreType `gorm:"column:type;not null"`
	CompanyName     string          `gorm:"column:company_name;not null"`
	Description     *string         `gorm:"column:description"`
	Phone           *string         `gorm:"column:phone"`
	Email           *string         `gorm:"column:email"`
	Address         types.Address   `gorm:"column:address;serializer:json"`
	LogoURL         *string         `gorm:"column:logo_url"`
	PendingLogo     []byte          `gorm:"column:pending_logo"`
	PendingLogoName *string         `gorm:"column:pending_logo_name"`
	SyncState       enums.SyncState `gorm:"column:sync_state;not null;default:'clean';index"`
	SyncAttempts    int             `gorm:"column:sync_attempts;not null;default:0"`
	LastSyncError   *string         `gorm:"column:last_sync_error"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the cache table name.
func (StoreRecord) TableName() string {
	return "store_records"
}

// HasPendingLogo reports whether a raw logo still awaits upload.
func (s StoreRecord) HasPendingLogo() bool {
	return len(s.PendingLogo) > 0
}
