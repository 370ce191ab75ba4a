package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
)

// CartLine is the cached copy of a single product row inside a cart. The
// composite primary key guarantees one row per product per cart; adds and
// quantity changes are upserts on that key.
type CartLine struct {
	CartID         uuid.UUID       `gorm:"column:cart_id;type:uuid;primaryKey"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	ProductSKU     string          `gorm:"column:product_sku;not null"`
	Qty            int             `gorm:"column:qty;not null"`
	UnitPriceCents int             `gorm:"column:unit_price_cents;not null"`
	FeaturedImage  *string         `gorm:"column:featured_image"`
	SyncState      enums.SyncState `gorm:"column:sync_state;not null;default:'clean';index"`
	SyncAttempts   int             `gorm:"column:sync_attempts;not null;default:0"`
	LastSyncError  *string         `gorm:"column:last_sync_error"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the cache table name.
func (CartLine) TableName() string {
	return "cart_lines"
}

// Key renders the composite cache key.
func (l CartLine) Key() string {
	return fmt.Sprintf("%s-%s", l.CartID, l.ProductID)
}
