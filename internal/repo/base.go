package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-mobile/pkg/cache"
)

// Base provides the shared cache access for entity repositories: context-
// bound reads plus mutations serialized through the cache client's write
// lock.
type Base struct {
	client *cache.Client
}

// NewBase binds a Base to the local cache.
func NewBase(client *cache.Client) Base {
	return Base{client: client}
}

// DB returns the read connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.client.DB()
	}
	return b.client.DB().WithContext(ctx)
}

// WithTx runs fn inside a serialized write transaction.
func (b Base) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.client.WithTx(ctx, fn)
}
