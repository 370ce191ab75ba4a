package stores

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
	"github.com/angelmondragon/packfinderz-mobile/pkg/validate"
)

// Service is the storefront surface the app talks to. Reads are remote-first
// with a cache fallback on unreachable networks. Writes are
// connectivity-dependent: online writes upload the logo and confirm with the
// server synchronously, offline writes persist locally with a pending state
// and a raw logo payload for the coordinator to upload later.
type Service interface {
	GetStore(ctx context.Context, id uuid.UUID) (*models.StoreRecord, error)
	ListStores(ctx context.Context) ([]models.StoreRecord, error)
	CreateStore(ctx context.Context, input CreateStoreInput) (*models.StoreRecord, error)
	UpdateStore(ctx context.Context, id uuid.UUID, input UpdateStoreInput) (*models.StoreRecord, error)
	DeleteStore(ctx context.Context, id uuid.UUID) error
	PushStore(ctx context.Context, id uuid.UUID) (PushResult, error)
	ListDirtyStores(ctx context.Context) ([]models.StoreRecord, error)
}

// PushResult describes what one store push did.
type PushResult struct {
	Action        enums.SyncAction
	ImageUploaded bool
}

// storeRemote is the slice of the remote API the store service needs.
type storeRemote interface {
	FetchStore(ctx context.Context, id uuid.UUID) (*remote.Store, error)
	ListStores(ctx context.Context) ([]remote.Store, error)
	CreateStore(ctx context.Context, id uuid.UUID, payload remote.StorePayload) (*remote.Store, error)
	UpdateStore(ctx context.Context, id uuid.UUID, payload remote.StorePayload) error
	DeleteStore(ctx context.Context, id uuid.UUID) error
}

// blobUploader turns raw image bytes into a durable public URL.
type blobUploader interface {
	Upload(ctx context.Context, data []byte, nameHint string) (string, error)
}

type service struct {
	repo     *Repository
	remote   storeRemote
	uploader blobUploader
	network  connectivity.Observer
	metrics  *metrics.SyncMetrics
	logger   *logger.Logger
}

// NewService wires the store service.
func NewService(
	repository *Repository,
	remoteClient storeRemote,
	uploader blobUploader,
	network connectivity.Observer,
	syncMetrics *metrics.SyncMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store repository is required")
	}
	if remoteClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "remote client is required")
	}
	if uploader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "blob uploader is required")
	}
	if network == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "connectivity observer is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{
		repo:     repository,
		remote:   remoteClient,
		uploader: uploader,
		network:  network,
		metrics:  syncMetrics,
		logger:   logg,
	}, nil
}

// GetStore prefers the remote copy and reconciles it into the cache; when
// the network is unreachable it serves the cached copy instead.
func (s *service) GetStore(ctx context.Context, id uuid.UUID) (*models.StoreRecord, error) {
	if !s.network.Reachable() {
		s.metrics.IncFallback("store")
		record, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeEmptyOffline, err, "store not cached")
		}
		return record, nil
	}

	fetched, err := s.remote.FetchStore(ctx, id)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNetworkUnreachable) {
			return nil, err
		}
		s.metrics.IncFallback("store")
		record, cacheErr := s.repo.Get(ctx, id)
		if cacheErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, cacheErr, "store not cached")
		}
		return record, nil
	}

	record := recordFromRemote(*fetched)
	if err := s.repo.UpsertFetched(ctx, record); err != nil {
		s.logger.Error(s.logger.WithStoreID(ctx, id.String()), "failed to reconcile fetched store into cache", err)
	}

	// The cached copy wins when a local edit is still unpushed.
	if cached, err := s.repo.Get(ctx, id); err == nil {
		return cached, nil
	}
	return &record, nil
}

// ListStores prefers the remote snapshot and reconciles it into the cache;
// offline it serves the cached set.
func (s *service) ListStores(ctx context.Context) ([]models.StoreRecord, error) {
	if !s.network.Reachable() {
		s.metrics.IncFallback("store")
		return s.cachedStores(ctx, pkgerrors.CodeEmptyOffline)
	}

	fetched, err := s.remote.ListStores(ctx)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNetworkUnreachable) {
			return nil, err
		}
		s.metrics.IncFallback("store")
		return s.cachedStores(ctx, pkgerrors.CodeNotFound)
	}

	records := make([]models.StoreRecord, 0, len(fetched))
	for _, store := range fetched {
		records = append(records, recordFromRemote(store))
	}
	if err := s.repo.ReplaceClean(ctx, records); err != nil {
		s.logger.Error(ctx, "failed to reconcile fetched stores into cache", err)
	}

	return s.repo.List(ctx, false)
}

func (s *service) cachedStores(ctx context.Context, emptyCode pkgerrors.Code) ([]models.StoreRecord, error) {
	records, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to read cached stores")
	}
	if len(records) == 0 {
		return nil, pkgerrors.New(emptyCode, "no stores cached")
	}
	return records, nil
}

// CreateStore registers a new storefront. Online, the logo is uploaded first
// and the create confirms with the server before landing clean in the cache.
// Offline, the record persists as pending with the raw logo attached.
func (s *service) CreateStore(ctx context.Context, input CreateStoreInput) (*models.StoreRecord, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	id := input.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	record := models.StoreRecord{
		ID:          id,
		Type:        input.Type,
		CompanyName: input.CompanyName,
		Description: input.Description,
		Phone:       input.Phone,
		Email:       input.Email,
		Address:     input.Address.Normalize(),
	}

	if !s.network.Reachable() {
		return s.persistPending(ctx, record, input.Logo, input.LogoName)
	}

	logoURL := s.uploadOrDegrade(ctx, id, input.Logo, input.LogoName)
	record.LogoURL = logoURL

	created, err := s.remote.CreateStore(ctx, id, payloadFromRecord(record, logoURL))
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNetworkUnreachable) {
			// The observer raced the actual call; degrade to the offline path.
			// An already-uploaded logo keeps its durable URL instead of
			// re-pending the raw bytes.
			if logoURL != nil {
				return s.persistPending(ctx, record, nil, nil)
			}
			return s.persistPending(ctx, record, input.Logo, input.LogoName)
		}
		return nil, err
	}

	confirmed := recordFromRemote(*created)
	if err := s.repo.UpsertClean(ctx, confirmed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to cache created store")
	}
	return &confirmed, nil
}

// UpdateStore edits an existing storefront, merging the partial input over
// the cached copy.
func (s *service) UpdateStore(ctx context.Context, id uuid.UUID, input UpdateStoreInput) (*models.StoreRecord, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		if !s.network.Reachable() {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "store not cached")
		}
		fetched, fetchErr := s.remote.FetchStore(ctx, id)
		if fetchErr != nil {
			return nil, fetchErr
		}
		fetchedRecord := recordFromRemote(*fetched)
		existing = &fetchedRecord
	}
	if existing.SyncState == enums.SyncStatePendingDelete {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "store awaits deletion")
	}

	record := input.apply(*existing)

	if !s.network.Reachable() {
		logo := input.Logo
		if logo == nil {
			logo = existing.PendingLogo
		}
		logoName := input.LogoName
		if logoName == nil {
			logoName = existing.PendingLogoName
		}
		return s.persistPending(ctx, record, logo, logoName)
	}

	logoURL := s.uploadOrDegrade(ctx, id, input.Logo, input.LogoName)
	if logoURL != nil {
		record.LogoURL = logoURL
	}

	// A row the server has never seen replays as a create; patching it
	// would just 404.
	var sendErr error
	if existing.SyncState == enums.SyncStatePendingCreate {
		_, sendErr = s.remote.CreateStore(ctx, id, payloadFromRecord(record, logoURL))
	} else {
		sendErr = s.remote.UpdateStore(ctx, id, payloadFromRecord(record, logoURL))
	}
	if sendErr != nil {
		if pkgerrors.HasCode(sendErr, pkgerrors.CodeNetworkUnreachable) {
			if logoURL != nil {
				// The upload already landed; keep its URL on the pending row.
				return s.persistPending(ctx, record, nil, nil)
			}
			record.LogoURL = existing.LogoURL
			logo := input.Logo
			if logo == nil {
				logo = existing.PendingLogo
			}
			logoName := input.LogoName
			if logoName == nil {
				logoName = existing.PendingLogoName
			}
			return s.persistPending(ctx, record, logo, logoName)
		}
		return nil, sendErr
	}

	record.PendingLogo = nil
	record.PendingLogoName = nil
	if err := s.repo.UpsertClean(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to cache updated store")
	}
	saved := record
	saved.SyncState = enums.SyncStateClean
	return &saved, nil
}

// DeleteStore removes a storefront. Online it confirms with the server and
// drops the cached row; offline the row is flagged for deletion and excluded
// from normal reads until the coordinator pushes it.
func (s *service) DeleteStore(ctx context.Context, id uuid.UUID) error {
	if !s.network.Reachable() {
		_, err := s.repo.MarkDelete(ctx, id)
		return err
	}

	err := s.remote.DeleteStore(ctx, id)
	switch {
	case err == nil, pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return s.repo.Delete(ctx, id)
	case pkgerrors.HasCode(err, pkgerrors.CodeNetworkUnreachable):
		_, markErr := s.repo.MarkDelete(ctx, id)
		return markErr
	default:
		return err
	}
}

// PushStore replays one dirty store against the server. A pending raw logo
// is uploaded first; upload failure defers the whole entity to a later pass.
func (s *service) PushStore(ctx context.Context, id uuid.UUID) (PushResult, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		// The record settled or was removed before this push ran.
		return PushResult{Action: enums.SyncActionNone}, nil
	}
	if !record.SyncState.IsDirty() {
		return PushResult{Action: enums.SyncActionNone}, nil
	}

	result := PushResult{Action: actionFor(record.SyncState)}

	if record.SyncState != enums.SyncStatePendingDelete && record.HasPendingLogo() {
		url, err := s.uploader.Upload(ctx, record.PendingLogo, logoNameHint(record))
		if err != nil {
			s.recordFailure(ctx, id, err)
			return result, pkgerrors.Wrap(pkgerrors.CodeNetworkUnreachable, err, "logo upload failed")
		}
		if err := s.repo.SetLogoUploaded(ctx, id, url); err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to record uploaded logo")
		}
		result.ImageUploaded = true

		// Re-read so the push carries the revision that now owns the URL,
		// plus any edit that landed while the upload ran.
		record, err = s.repo.Get(ctx, id)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to re-read store after logo upload")
		}
		if record.HasPendingLogo() {
			// A newer logo superseded the upload; the next pass replays it.
			return PushResult{Action: enums.SyncActionNone, ImageUploaded: true}, nil
		}
		result.Action = actionFor(record.SyncState)
	}

	if err := s.sendStore(ctx, record); err != nil {
		s.recordFailure(ctx, id, err)
		return result, err
	}

	if err := s.repo.ClearDirty(ctx, *record); err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "failed to settle pushed store")
	}
	s.metrics.IncPush("store", result.Action.String())
	return result, nil
}

func (s *service) sendStore(ctx context.Context, record *models.StoreRecord) error {
	switch record.SyncState {
	case enums.SyncStatePendingCreate:
		_, err := s.remote.CreateStore(ctx, record.ID, payloadFromRecord(*record, record.LogoURL))
		return err
	case enums.SyncStatePendingDelete:
		err := s.remote.DeleteStore(ctx, record.ID)
		if err != nil && pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			// Already gone server-side; the intent is satisfied.
			return nil
		}
		return err
	default:
		return s.remote.UpdateStore(ctx, record.ID, payloadFromRecord(*record, record.LogoURL))
	}
}

// ListDirtyStores snapshots every store still awaiting a push.
func (s *service) ListDirtyStores(ctx context.Context) ([]models.StoreRecord, error) {
	return s.repo.ListDirty(ctx)
}

func (s *service) persistPending(ctx context.Context, record models.StoreRecord, logo []byte, logoName *string) (*models.StoreRecord, error) {
	record.PendingLogo = logo
	record.PendingLogoName = logoName
	return s.repo.UpsertDirty(ctx, record)
}

// uploadOrDegrade attempts the logo upload on the online path. Failure is a
// documented degraded write: the mutation proceeds without the image change
// and the previous URL stays in place.
func (s *service) uploadOrDegrade(ctx context.Context, id uuid.UUID, logo []byte, logoName *string) *string {
	if len(logo) == 0 {
		return nil
	}
	hint := ""
	if logoName != nil {
		hint = *logoName
	}
	url, err := s.uploader.Upload(ctx, logo, hint)
	if err != nil {
		s.logger.Error(s.logger.WithStoreID(ctx, id.String()), "logo upload failed, proceeding without image change", err)
		return nil
	}
	return &url
}

func (s *service) recordFailure(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.repo.RecordSyncFailure(ctx, id, cause); err != nil {
		s.logger.Error(s.logger.WithStoreID(ctx, id.String()), "failed to record push failure", err)
	}
	s.metrics.IncFailure("store")
}

func recordFromRemote(store remote.Store) models.StoreRecord {
	return models.StoreRecord{
		ID:          store.ID,
		Type:        store.Type,
		CompanyName: store.CompanyName,
		Description: store.Description,
		Phone:       store.Phone,
		Email:       store.Email,
		Address:     store.Address,
		LogoURL:     store.LogoURL,
		SyncState:   enums.SyncStateClean,
	}
}

func payloadFromRecord(record models.StoreRecord, logoURL *string) remote.StorePayload {
	address := record.Address
	payload := remote.StorePayload{
		Type:        record.Type,
		CompanyName: record.CompanyName,
		Description: record.Description,
		Phone:       record.Phone,
		Email:       record.Email,
		Address:     &address,
	}
	if logoURL != nil {
		payload.LogoURL = logoURL
	} else {
		payload.LogoURL = record.LogoURL
	}
	return payload
}

func logoNameHint(record *models.StoreRecord) string {
	if record.PendingLogoName != nil {
		return *record.PendingLogoName
	}
	return record.ID.String()
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
