package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-mobile/internal/stores"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache/models"
	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
	"github.com/angelmondragon/packfinderz-mobile/pkg/metrics"
)

// Service drains the dirty set. Each pass walks every dirty entity in stable
// order, pushes it, and keeps going past individual failures so one bad
// entity never blocks the rest.
type Service interface {
	Pass(ctx context.Context) (Summary, error)
}

// cartSyncer is the slice of the cart service the coordinator needs.
type cartSyncer interface {
	ListDirtyLines(ctx context.Context) ([]models.CartLine, error)
	PushLine(ctx context.Context, cartID, productID uuid.UUID) (enums.SyncAction, error)
}

// storeSyncer is the slice of the store service the coordinator needs.
type storeSyncer interface {
	ListDirtyStores(ctx context.Context) ([]models.StoreRecord, error)
	PushStore(ctx context.Context, id uuid.UUID) (stores.PushResult, error)
}

type service struct {
	carts   cartSyncer
	stores  storeSyncer
	metrics *metrics.SyncMetrics
	logger  *logger.Logger
}

// NewService wires the sync coordinator.
func NewService(carts cartSyncer, storeSvc storeSyncer, syncMetrics *metrics.SyncMetrics, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart syncer is required")
	}
	if storeSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store syncer is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{
		carts:   carts,
		stores:  storeSvc,
		metrics: syncMetrics,
		logger:  logg,
	}, nil
}

// Pass drains every dirty entity once. Safe to invoke repeatedly: a pass
// over a clean cache pushes nothing. The returned error covers only the
// inability to enumerate the dirty set; per-entity failures live in the
// summary.
func (s *service) Pass(ctx context.Context) (Summary, error) {
	passID := uuid.NewString()
	ctx = s.logger.WithSyncPass(ctx, passID)
	started := time.Now()
	defer func() {
		s.metrics.ObservePassDuration("all", time.Since(started))
	}()

	var summary Summary

	if err := s.drainCarts(ctx, &summary); err != nil {
		return summary, err
	}
	if err := s.drainStores(ctx, &summary); err != nil {
		return summary, err
	}

	if summary.Dirty() {
		s.logger.Warn(s.logger.WithField(ctx, "failed", len(summary.Failures)), "sync pass completed with failures")
	} else if summary.Pushed() > 0 {
		s.logger.Info(s.logger.WithField(ctx, "pushed", summary.Pushed()), "sync pass drained dirty set")
	}
	return summary, nil
}

func (s *service) drainCarts(ctx context.Context, summary *Summary) error {
	lines, err := s.carts.ListDirtyLines(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to list dirty cart lines")
	}

	for _, line := range lines {
		action, err := s.carts.PushLine(ctx, line.CartID, line.ProductID)
		if err != nil {
			summary.Failures = append(summary.Failures, EntityError{
				Entity: "cart_line",
				Key:    line.Key(),
				Err:    err,
			})
			continue
		}
		summary.count(action)
	}
	return nil
}

func (s *service) drainStores(ctx context.Context, summary *Summary) error {
	records, err := s.stores.ListDirtyStores(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to list dirty stores")
	}

	for _, record := range records {
		result, err := s.stores.PushStore(ctx, record.ID)
		if result.ImageUploaded {
			summary.ImagesUploaded++
		}
		if err != nil {
			summary.Failures = append(summary.Failures, EntityError{
				Entity: "store",
				Key:    record.ID.String(),
				Err:    err,
			})
			continue
		}
		summary.count(result.Action)
	}
	return nil
}
