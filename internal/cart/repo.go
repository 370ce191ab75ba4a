package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-mobile/internal/repo"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache/models"
	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
)

// Repository exposes cache persistence for cart lines. Mutations run inside
// the cache client's write lock; reads bind straight to the connection and
// always hand out detached copies.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to the local cache.
func NewRepository(client *cache.Client) *Repository {
	return &Repository{
		base: repo.NewBase(client),
	}
}

// Get loads one line by its composite key.
func (r *Repository) Get(ctx context.Context, cartID, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.base.DB(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// List returns the lines of a cart, excluding rows awaiting deletion unless
// asked for explicitly.
func (r *Repository) List(ctx context.Context, cartID uuid.UUID, includePendingDelete bool) ([]models.CartLine, error) {
	query := r.base.DB(ctx).Where("cart_id = ?", cartID)
	if !includePendingDelete {
		query = query.Where("sync_state <> ?", enums.SyncStatePendingDelete)
	}
	var lines []models.CartLine
	if err := query.
		Order("created_at ASC").
		Order("product_id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// ReplaceClean reconciles a fresh remote snapshot into the cache. Dirty rows
// hold unpushed local truth and are left untouched; clean rows are replaced
// wholesale by the snapshot.
func (r *Repository) ReplaceClean(ctx context.Context, cartID uuid.UUID, lines []models.CartLine) error {
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var dirty []models.CartLine
		if err := tx.
			Where("cart_id = ? AND sync_state <> ?", cartID, enums.SyncStateClean).
			Find(&dirty).Error; err != nil {
			return err
		}
		dirtyKeys := make(map[uuid.UUID]struct{}, len(dirty))
		for _, line := range dirty {
			dirtyKeys[line.ProductID] = struct{}{}
		}

		if err := tx.
			Where("cart_id = ? AND sync_state = ?", cartID, enums.SyncStateClean).
			Delete(&models.CartLine{}).Error; err != nil {
			return err
		}

		for _, line := range lines {
			if _, pending := dirtyKeys[line.ProductID]; pending {
				continue
			}
			line.CartID = cartID
			line.SyncState = enums.SyncStateClean
			line.SyncAttempts = 0
			line.LastSyncError = nil
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
				UpdateAll: true,
			}).Create(&line).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertDirty applies a local-first mutation and resolves the resulting sync
// state: a row unseen by the server stays pending_create, anything the server
// already has becomes pending_update. Delete wins: a row awaiting deletion
// cannot be mutated again.
func (r *Repository) UpsertDirty(ctx context.Context, line models.CartLine) (*models.CartLine, error) {
	var saved models.CartLine
	err := r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.CartLine
		err := tx.
			Where("cart_id = ? AND product_id = ?", line.CartID, line.ProductID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			line.SyncState = enums.SyncStatePendingCreate
		case err != nil:
			return err
		case existing.SyncState == enums.SyncStatePendingDelete:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "line awaits deletion")
		case existing.SyncState == enums.SyncStatePendingCreate:
			line.SyncState = enums.SyncStatePendingCreate
			line.CreatedAt = existing.CreatedAt
		default:
			line.SyncState = enums.SyncStatePendingUpdate
			line.CreatedAt = existing.CreatedAt
		}

		line.SyncAttempts = 0
		line.LastSyncError = nil

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			UpdateAll: true,
		}).Create(&line).Error; err != nil {
			return err
		}
		saved = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// MarkDelete flags a line for remote removal. A missing row is a no-op, not
// an error; a row already awaiting deletion stays as is.
func (r *Repository) MarkDelete(ctx context.Context, cartID, productID uuid.UUID) (bool, error) {
	marked := false
	err := r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.CartLine
		err := tx.
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		marked = true
		return tx.Model(&models.CartLine{}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Updates(map[string]any{
				"sync_state":      enums.SyncStatePendingDelete,
				"sync_attempts":   0,
				"last_sync_error": nil,
			}).Error
	})
	return marked, err
}

// ListDirty snapshots every line still awaiting a push, in stable order.
func (r *Repository) ListDirty(ctx context.Context, cartID *uuid.UUID) ([]models.CartLine, error) {
	query := r.base.DB(ctx).Where("sync_state <> ?", enums.SyncStateClean)
	if cartID != nil {
		query = query.Where("cart_id = ?", *cartID)
	}
	var lines []models.CartLine
	if err := query.
		Order("updated_at ASC").
		Order("cart_id ASC").
		Order("product_id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// ClearDirty confirms a successful push of the given snapshot. The row only
// settles when it is still the exact revision that went over the wire: a
// local write landing mid-push bumps updated_at and must stay dirty for the
// next pass. Rows that were awaiting deletion are removed outright.
func (r *Repository) ClearDirty(ctx context.Context, pushed models.CartLine) error {
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.CartLine
		err := tx.
			Where("cart_id = ? AND product_id = ?", pushed.CartID, pushed.ProductID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if existing.SyncState != pushed.SyncState || !existing.UpdatedAt.Equal(pushed.UpdatedAt) {
			// Superseded while the push was in flight.
			return nil
		}

		if existing.SyncState == enums.SyncStatePendingDelete {
			return tx.
				Where("cart_id = ? AND product_id = ?", pushed.CartID, pushed.ProductID).
				Delete(&models.CartLine{}).Error
		}

		return tx.Model(&models.CartLine{}).
			Where("cart_id = ? AND product_id = ?", pushed.CartID, pushed.ProductID).
			Updates(map[string]any{
				"sync_state":      enums.SyncStateClean,
				"sync_attempts":   0,
				"last_sync_error": nil,
			}).Error
	})
}

// RecordSyncFailure bumps the attempt counter for a failed push. The row
// stays dirty and will be replayed by a later pass.
func (r *Repository) RecordSyncFailure(ctx context.Context, cartID, productID uuid.UUID, cause error) error {
	msg := cause.Error()
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.CartLine{}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Updates(map[string]any{
				"sync_attempts":   gorm.Expr("sync_attempts + 1"),
				"last_sync_error": msg,
			}).Error
	})
}
