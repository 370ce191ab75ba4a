package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-mobile/pkg/cache/models"
	"github.com/angelmondragon/packfinderz-mobile/pkg/connectivity"
	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
	"github.com/angelmondragon/packfinderz-mobile/pkg/metrics"
	"github.com/angelmondragon/packfinderz-mobile/pkg/remote"
	"github.com/angelmondragon/packfinderz-mobile/pkg/tasks"
	"github.com/angelmondragon/packfinderz-mobile/pkg/validate"
)

// Service is the cart surface the app talks to. Reads are remote-first with a
// cache fallback on unreachable networks; writes land in the cache
// immediately and are pushed in the background.
type Service interface {
	GetLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error)
	AddLine(ctx context.Context, input AddLineInput) (*models.CartLine, error)
	UpdateQty(ctx context.Context, cartID, productID uuid.UUID, qty int) (*models.CartLine, error)
	RemoveLine(ctx context.Context, cartID, productID uuid.UUID) error
	PushLine(ctx context.Context, cartID, productID uuid.UUID) (enums.SyncAction, error)
	ListDirtyLines(ctx context.Context) ([]models.CartLine, error)
}

// lineRemote is the slice of the remote API the cart service needs.
type lineRemote interface {
	FetchCartLines(ctx context.Context, cartID uuid.UUID) ([]remote.CartLine, error)
	PutCartLine(ctx context.Context, line remote.CartLine) error
	DeleteCartLine(ctx context.Context, cartID, productID uuid.UUID) error
}

// pushScheduler accepts detached background work. Dropped submissions are
// fine: the dirty row is durable and the next sync pass picks it up.
type pushScheduler interface {
	Submit(task tasks.Task) bool
}

// AddLineInput carries a local-first line mutation.
type AddLineInput struct {
	CartID         uuid.UUID `validate:"required"`
	ProductID      uuid.UUID `validate:"required"`
	ProductSKU     string    `validate:"required"`
	Qty            int       `validate:"required,gt=0"`
	UnitPriceCents int       `validate:"gte=0"`
	FeaturedImage  *string
}

type service struct {
	repo      *Repository
	remote    lineRemote
	network   connectivity.Observer
	scheduler pushScheduler
	metrics   *metrics.SyncMetrics
	logger    *logger.Logger
}

// NewService wires the cart service. The scheduler may be nil, in which case
// pushes are left entirely to the sync passes.
func NewService(
	repository *Repository,
	remoteClient lineRemote,
	network connectivity.Observer,
	scheduler pushScheduler,
	syncMetrics *metrics.SyncMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository is required")
	}
	if remoteClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "remote client is required")
	}
	if network == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "connectivity observer is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{
		repo:      repository,
		remote:    remoteClient,
		network:   network,
		scheduler: scheduler,
		metrics:   syncMetrics,
		logger:    logg,
	}, nil
}

// GetLines prefers the remote snapshot and reconciles it into the cache;
// when the network is unreachable it serves the cached view instead. Any
// other remote failure propagates untouched.
func (s *service) GetLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	if !s.network.Reachable() {
		s.metrics.IncFallback("cart_line")
		return s.cachedLines(ctx, cartID, pkgerrors.CodeEmptyOffline)
	}

	remoteLines, err := s.remote.FetchCartLines(ctx, cartID)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNetworkUnreachable) {
			return nil, err
		}
		s.metrics.IncFallback("cart_line")
		s.logger.Debug(s.logger.WithCartID(ctx, cartID.String()), "remote unreachable, serving cached cart")
		return s.cachedLines(ctx, cartID, pkgerrors.CodeNotFound)
	}

	mapped := make([]models.CartLine, 0, len(remoteLines))
	for _, line := range remoteLines {
		mapped = append(mapped, models.CartLine{
			CartID:         line.CartID,
			ProductID:      line.ProductID,
			ProductSKU:     line.ProductSKU,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			FeaturedImage:  line.FeaturedImage,
			SyncState:      enums.SyncStateClean,
		})
	}
	if err := s.repo.ReplaceClean(ctx, cartID, mapped); err != nil {
		s.logger.Error(s.logger.WithCartID(ctx, cartID.String()), "failed to reconcile remote cart into cache", err)
	}

	// The merged cache view reflects both the snapshot and any unpushed
	// local mutations.
	return s.repo.List(ctx, cartID, false)
}

// cachedLines serves the local view. The error code for an empty cache
// depends on the caller: a connectivity race reports not-found, while a
// known-offline read reports the distinct empty-offline condition.
func (s *service) cachedLines(ctx context.Context, cartID uuid.UUID, emptyCode pkgerrors.Code) ([]models.CartLine, error) {
	lines, err := s.repo.List(ctx, cartID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to read cached cart")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(emptyCode, "cart has no cached lines")
	}
	return lines, nil
}

// AddLine upserts a line into the cache and schedules a detached push. The
// local write succeeds regardless of connectivity.
func (s *service) AddLine(ctx context.Context, input AddLineInput) (*models.CartLine, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	line, err := s.repo.UpsertDirty(ctx, models.CartLine{
		CartID:         input.CartID,
		ProductID:      input.ProductID,
		ProductSKU:     input.ProductSKU,
		Qty:            input.Qty,
		UnitPriceCents: input.UnitPriceCents,
		FeaturedImage:  input.FeaturedImage,
	})
	if err != nil {
		return nil, err
	}

	s.schedulePush(ctx, line.CartID, line.ProductID)
	return line, nil
}

// UpdateQty adjusts the quantity of an existing line. The mutation follows
// the same local-first path as AddLine.
func (s *service) UpdateQty(ctx context.Context, cartID, productID uuid.UUID, qty int) (*models.CartLine, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	existing, err := s.repo.Get(ctx, cartID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "cart line not found")
	}
	if existing.SyncState == enums.SyncStatePendingDelete {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "line awaits deletion")
	}

	existing.Qty = qty
	line, err := s.repo.UpsertDirty(ctx, *existing)
	if err != nil {
		return nil, err
	}

	s.schedulePush(ctx, cartID, productID)
	return line, nil
}

// RemoveLine marks a line for deletion and schedules the push. Removing a
// line that is not cached is a no-op.
func (s *service) RemoveLine(ctx context.Context, cartID, productID uuid.UUID) error {
	marked, err := s.repo.MarkDelete(ctx, cartID, productID)
	if err != nil {
		return err
	}
	if marked {
		s.schedulePush(ctx, cartID, productID)
	}
	return nil
}

// PushLine re-reads the line and sends its current state to the server. The
// re-read makes detached pushes coalesce: a burst of edits to the same line
// resolves to one upsert of the latest values. Settling is conditional on
// the snapshot that was sent, so an edit landing mid-push stays dirty.
func (s *service) PushLine(ctx context.Context, cartID, productID uuid.UUID) (enums.SyncAction, error) {
	line, err := s.repo.Get(ctx, cartID, productID)
	if err != nil {
		// The line settled or was removed before this push ran.
		return enums.SyncActionNone, nil
	}
	if !line.SyncState.IsDirty() {
		return enums.SyncActionNone, nil
	}

	action := actionFor(line.SyncState)
	if err := s.sendLine(ctx, line); err != nil {
		if recErr := s.repo.RecordSyncFailure(ctx, cartID, productID, err); recErr != nil {
			s.logger.Error(s.logger.WithEntityKey(ctx, line.Key()), "failed to record push failure", recErr)
		}
		s.metrics.IncFailure("cart_line")
		return action, err
	}

	if err := s.repo.ClearDirty(ctx, *line); err != nil {
		return action, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to settle pushed line")
	}
	s.metrics.IncPush("cart_line", action.String())
	return action, nil
}

func (s *service) sendLine(ctx context.Context, line *models.CartLine) error {
	switch line.SyncState {
	case enums.SyncStatePendingDelete:
		err := s.remote.DeleteCartLine(ctx, line.CartID, line.ProductID)
		if err != nil && pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			// Already gone server-side; the intent is satisfied.
			return nil
		}
		return err
	default:
		return s.remote.PutCartLine(ctx, remote.CartLine{
			CartID:         line.CartID,
			ProductID:      line.ProductID,
			ProductSKU:     line.ProductSKU,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			FeaturedImage:  line.FeaturedImage,
		})
	}
}

// ListDirtyLines snapshots every line still awaiting a push.
func (s *service) ListDirtyLines(ctx context.Context) ([]models.CartLine, error) {
	return s.repo.ListDirty(ctx, nil)
}

func (s *service) schedulePush(ctx context.Context, cartID, productID uuid.UUID) {
	if s.scheduler == nil {
		return
	}
	submitted := s.scheduler.Submit(func(taskCtx context.Context) {
		lctx := s.logger.WithCartID(taskCtx, cartID.String())
		lctx = s.logger.WithField(lctx, "product_id", productID.String())
		if _, err := s.PushLine(taskCtx, cartID, productID); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNetworkUnreachable) {
				s.logger.Debug(lctx, "detached cart push deferred, network unreachable")
				return
			}
			s.logger.Error(lctx, "detached cart push failed", err)
		}
	})
	if !submitted {
		s.logger.Debug(s.logger.WithCartID(ctx, cartID.String()), "push queue saturated, deferring to sync pass")
	}
}

func actionFor(state enums.SyncState) enums.SyncAction {
	switch state {
	case enums.SyncStatePendingCreate:
		return enums.SyncActionCreate
	case enums.SyncStatePendingUpdate:
		return enums.SyncActionUpdate
	case enums.SyncStatePendingDelete:
		return enums.SyncActionDelete
	default:
		return enums.SyncActionNone
	}
}
