package stores

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

// Repository exposes cache persistence for store records.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to the local cache.
func NewRepository(client *cache.Client) *Repository {
	return &Repository{
		base: repo.NewBase(client),
	}
}

// Get loads one store by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.StoreRecord, error) {
	var record models.StoreRecord
	if err := r.base.DB(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns every cached store, excluding rows awaiting deletion unless
// asked for explicitly.
func (r *Repository) List(ctx context.Context, includePendingDelete bool) ([]models.StoreRecord, error) {
	query := r.base.DB(ctx)
	if !includePendingDelete {
		query = query.Where("sync_state <> ?", enums.SyncStatePendingDelete)
	}
	var records []models.StoreRecord
	if err := query.Order("company_name ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ReplaceClean reconciles a remote snapshot into the cache, leaving dirty
// rows untouched.
func (r *Repository) ReplaceClean(ctx context.Context, records []models.StoreRecord) error {
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var dirty []models.StoreRecord
		if err := tx.Where("sync_state <> ?", enums.SyncStateClean).Find(&dirty).Error; err != nil {
			return err
		}
		dirtyIDs := make(map[uuid.UUID]struct{}, len(dirty))
		for _, record := range dirty {
			dirtyIDs[record.ID] = struct{}{}
		}

		if err := tx.Where("sync_state = ?", enums.SyncStateClean).Delete(&models.StoreRecord{}).Error; err != nil {
			return err
		}

		for _, record := range records {
			if _, pending := dirtyIDs[record.ID]; pending {
				continue
			}
			record.SyncState = enums.SyncStateClean
			record.SyncAttempts = 0
			record.LastSyncError = nil
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertFetched reconciles a single fetched record into the cache. A dirty
// row holds unpushed local truth and is left untouched.
func (r *Repository) UpsertFetched(ctx context.Context, record models.StoreRecord) error {
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.StoreRecord
		err := tx.Where("id = ?", record.ID).First(&existing).Error
		if err == nil && existing.SyncState != enums.SyncStateClean {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		record.SyncState = enums.SyncStateClean
		record.SyncAttempts = 0
		record.LastSyncError = nil
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&record).Error
	})
}

// UpsertClean writes a single confirmed record, replacing any prior copy.
func (r *Repository) UpsertClean(ctx context.Context, record models.StoreRecord) error {
	record.SyncState = enums.SyncStateClean
	record.SyncAttempts = 0
	record.LastSyncError = nil
	record.PendingLogo = nil
	record.PendingLogoName = nil
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&record).Error
	})
}

// UpsertDirty applies a local-first mutation, resolving the sync state the
// same way the cart cache does: new rows pend creation, known rows pend
// update, rows awaiting deletion reject further edits.
func (r *Repository) UpsertDirty(ctx context.Context, record models.StoreRecord) (*models.StoreRecord, error) {
	var saved models.StoreRecord
	err := r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.StoreRecord
		err := tx.Where("id = ?", record.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record.SyncState = enums.SyncStatePendingCreate
		case err != nil:
			return err
		case existing.SyncState == enums.SyncStatePendingDelete:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "store awaits deletion")
		case existing.SyncState == enums.SyncStatePendingCreate:
			record.SyncState = enums.SyncStatePendingCreate
			record.CreatedAt = existing.CreatedAt
		default:
			record.SyncState = enums.SyncStatePendingUpdate
			record.CreatedAt = existing.CreatedAt
		}

		record.SyncAttempts = 0
		record.LastSyncError = nil

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&record).Error; err != nil {
			return err
		}
		saved = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// MarkDelete flags a store for remote removal. Missing rows are a no-op.
func (r *Repository) MarkDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	marked := false
	err := r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.StoreRecord
		err := tx.Where("id = ?", id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		marked = true
		return tx.Model(&models.StoreRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"sync_state":        enums.SyncStatePendingDelete,
				"sync_attempts":     0,
				"last_sync_error":   nil,
				"pending_logo":      nil,
				"pending_logo_name": nil,
			}).Error
	})
	return marked, err
}

// Delete removes a store row outright.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&models.StoreRecord{}).Error
	})
}

// ListDirty snapshots every store still awaiting a push, in stable order.
func (r *Repository) ListDirty(ctx context.Context) ([]models.StoreRecord, error) {
	var records []models.StoreRecord
	if err := r.base.DB(ctx).
		Where("sync_state <> ?", enums.SyncStateClean).
		Order("updated_at ASC").
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SetLogoUploaded records the public URL of an uploaded logo and drops the
// raw payload. The row stays dirty until its push settles.
func (r *Repository) SetLogoUploaded(ctx context.Context, id uuid.UUID, url string) error {
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.StoreRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"logo_url":          url,
				"pending_logo":      nil,
				"pending_logo_name": nil,
			}).Error
	})
}

// ClearDirty confirms a successful push of the given snapshot. The row only
// settles when it is still the exact revision that went over the wire; an
// edit landing mid-push stays dirty for the next pass. Rows awaiting deletion
// are removed outright.
func (r *Repository) ClearDirty(ctx context.Context, pushed models.StoreRecord) error {
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.StoreRecord
		err := tx.Where("id = ?", pushed.ID).First(&existing).Error
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
			return tx.Where("id = ?", pushed.ID).Delete(&models.StoreRecord{}).Error
		}

		return tx.Model(&models.StoreRecord{}).
			Where("id = ?", pushed.ID).
			Updates(map[string]any{
				"sync_state":      enums.SyncStateClean,
				"sync_attempts":   0,
				"last_sync_error": nil,
			}).Error
	})
}

// RecordSyncFailure bumps the attempt counter for a failed push.
func (r *Repository) RecordSyncFailure(ctx context.Context, id uuid.UUID, cause error) error {
	msg := cause.Error()
	return r.base.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.StoreRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"sync_attempts":   gorm.Expr("sync_attempts + 1"),
				"last_sync_error": msg,
			}).Error
	})
}
