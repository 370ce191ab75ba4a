package syncer

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-mobile/internal/cart"
	"github.com/angelmondragon/packfinderz-mobile/internal/stores"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache/models"
	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
	"github.com/angelmondragon/packfinderz-mobile/pkg/remote"
	"github.com/angelmondragon/packfinderz-mobile/pkg/types"
)

type fakeRemote struct {
	putErrByProduct map[uuid.UUID]error
	createErrByID   map[uuid.UUID]error
	deleteStoreErr  error

	linePuts     []remote.CartLine
	lineDeletes  []uuid.UUID
	storeCreates []uuid.UUID
	storeUpdates []uuid.UUID
	storeDeletes []uuid.UUID
}

func (f *fakeRemote) FetchCartLines(ctx context.Context, cartID uuid.UUID) ([]remote.CartLine, error) {
	return nil, nil
}

func (f *fakeRemote) PutCartLine(ctx context.Context, line remote.CartLine) error {
	if err := f.putErrByProduct[line.ProductID]; err != nil {
		return err
	}
	f.linePuts = append(f.linePuts, line)
	return nil
}

func (f *fakeRemote) DeleteCartLine(ctx context.Context, cartID, productID uuid.UUID) error {
	f.lineDeletes = append(f.lineDeletes, productID)
	return nil
}

func (f *fakeRemote) FetchStore(ctx context.Context, id uuid.UUID) (*remote.Store, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no store")
}

func (f *fakeRemote) ListStores(ctx context.Context) ([]remote.Store, error) {
	return nil, nil
}

func (f *fakeRemote) CreateStore(ctx context.Context, id uuid.UUID, payload remote.StorePayload) (*remote.Store, error) {
	if err := f.createErrByID[id]; err != nil {
		return nil, err
	}
	f.storeCreates = append(f.storeCreates, id)
	return &remote.Store{ID: id, Type: payload.Type, CompanyName: payload.CompanyName}, nil
}

func (f *fakeRemote) UpdateStore(ctx context.Context, id uuid.UUID, payload remote.StorePayload) error {
	f.storeUpdates = append(f.storeUpdates, id)
	return nil
}

func (f *fakeRemote) DeleteStore(ctx context.Context, id uuid.UUID) error {
	if f.deleteStoreErr != nil {
		return f.deleteStoreErr
	}
	f.storeDeletes = append(f.storeDeletes, id)
	return nil
}

type fakeUploader struct {
	url     string
	err     error
	uploads int
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, nameHint string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads++
	return f.url, nil
}

type fakeObserver struct{ reachable bool }

func (f *fakeObserver) Reachable() bool        { return f.reachable }
func (f *fakeObserver) OnChange(fn func(bool)) {}

type fixture struct {
	svc       Service
	cartRepo  *cart.Repository
	storeRepo *stores.Repository
	remote    *fakeRemote
	uploader  *fakeUploader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	client, err := cache.NewWithConn(conn)
	if err != nil {
		t.Fatalf("failed to build cache client: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	rem := &fakeRemote{
		putErrByProduct: map[uuid.UUID]error{},
		createErrByID:   map[uuid.UUID]error{},
	}
	up := &fakeUploader{url: "https://cdn.example.com/logo.png"}
	obs := &fakeObserver{reachable: true}

	cartRepo := cart.NewRepository(client)
	cartSvc, err := cart.NewService(cartRepo, rem, obs, nil, nil, logg)
	if err != nil {
		t.Fatalf("failed to build cart service: %v", err)
	}

	storeRepo := stores.NewRepository(client)
	storeSvc, err := stores.NewService(storeRepo, rem, up, obs, nil, logg)
	if err != nil {
		t.Fatalf("failed to build store service: %v", err)
	}

	svc, err := NewService(cartSvc, storeSvc, nil, logg)
	if err != nil {
		t.Fatalf("failed to build syncer: %v", err)
	}
	return &fixture{svc: svc, cartRepo: cartRepo, storeRepo: storeRepo, remote: rem, uploader: up}
}

func (f *fixture) seedDirtyLine(t *testing.T, state enums.SyncState) models.CartLine {
	t.Helper()
	line := models.CartLine{
		CartID: uuid.New(), ProductID: uuid.New(), ProductSKU: "SKU", Qty: 1, SyncState: state,
	}
	saved, err := f.cartRepo.UpsertDirty(context.Background(), line)
	if err != nil {
		t.Fatalf("failed to seed line: %v", err)
	}
	if state == enums.SyncStatePendingDelete {
		if _, err := f.cartRepo.MarkDelete(context.Background(), line.CartID, line.ProductID); err != nil {
			t.Fatalf("failed to mark delete: %v", err)
		}
		saved.SyncState = enums.SyncStatePendingDelete
	}
	return *saved
}

func TestPassDrainsDirtySet(t *testing.T) {
	f := newFixture(t)
	f.seedDirtyLine(t, enums.SyncStatePendingCreate)
	f.seedDirtyLine(t, enums.SyncStatePendingDelete)

	summary, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Dirty() {
		t.Fatalf("expected a clean pass, got failures: %v", summary.Failures)
	}
	if summary.Created != 1 || summary.Deleted != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}

	dirty, err := f.cartRepo.ListDirty(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dirty) != 0 {
		t.Fatalf("expected no dirty lines after the pass, got %d", len(dirty))
	}
}

func TestPassIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedDirtyLine(t, enums.SyncStatePendingCreate)

	first, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Pushed() != 1 {
		t.Fatalf("expected one push in the first pass, got %d", first.Pushed())
	}

	second, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Pushed() != 0 || second.Dirty() {
		t.Fatalf("expected a no-op second pass, got %+v", second)
	}
	if len(f.remote.linePuts) != 1 {
		t.Fatalf("expected exactly one wire call across both passes, got %d", len(f.remote.linePuts))
	}
}

func TestPassIsolatesPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.seedDirtyLine(t, enums.SyncStatePendingCreate)
	second := f.seedDirtyLine(t, enums.SyncStatePendingCreate)
	f.seedDirtyLine(t, enums.SyncStatePendingCreate)
	f.remote.putErrByProduct[second.ProductID] = pkgerrors.New(pkgerrors.CodeServerRejected, "422")

	summary, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Created != 2 {
		t.Fatalf("expected two confirmed creates, got %d", summary.Created)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Key != second.Key() {
		t.Fatalf("expected one failure for the second line, got %+v", summary.Failures)
	}
	if summary.Err() == nil {
		t.Fatal("expected an aggregated error for the partial failure")
	}

	// The healthy lines settled, the failed one stays dirty with the error
	// recorded.
	dirty, err := f.cartRepo.ListDirty(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dirty) != 1 || dirty[0].ProductID != second.ProductID {
		t.Fatalf("expected only the failed line to stay dirty, got %+v", dirty)
	}
	if dirty[0].SyncAttempts != 1 || dirty[0].LastSyncError == nil {
		t.Fatalf("expected the failure to be recorded, got %+v", dirty[0])
	}
}

func TestPassCoalescesRapidEdits(t *testing.T) {
	f := newFixture(t)
	line := f.seedDirtyLine(t, enums.SyncStatePendingCreate)

	// Two more edits before any pass runs.
	for _, qty := range []int{5, 3} {
		line.Qty = qty
		if _, err := f.cartRepo.UpsertDirty(context.Background(), line); err != nil {
			t.Fatalf("failed to edit line: %v", err)
		}
	}

	summary, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Pushed() != 1 {
		t.Fatalf("expected one push, got %d", summary.Pushed())
	}
	if len(f.remote.linePuts) != 1 || f.remote.linePuts[0].Qty != 3 {
		t.Fatalf("expected one wire call with the final quantity, got %+v", f.remote.linePuts)
	}
}

func TestPassUploadsPendingImages(t *testing.T) {
	f := newFixture(t)
	record := models.StoreRecord{
		ID: uuid.New(), Type: enums.StoreTypeVendor, CompanyName: "Acme",
		Address: types.Address{Line1: "1 Main St", City: "Tulsa", State: "OK", PostalCode: "74101", Country: "US"},
	}
	record.PendingLogo = []byte{1, 2, 3}
	if _, err := f.storeRepo.UpsertDirty(context.Background(), record); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	summary, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ImagesUploaded != 1 || summary.Created != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if f.uploader.uploads != 1 {
		t.Fatalf("expected one upload, got %d", f.uploader.uploads)
	}

	got, err := f.storeRepo.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SyncState != enums.SyncStateClean || got.HasPendingLogo() {
		t.Fatalf("expected settled store, got %+v", got)
	}
}

func TestPassFailedDeleteKeepsRowFlagged(t *testing.T) {
	f := newFixture(t)
	record := models.StoreRecord{ID: uuid.New(), Type: enums.StoreTypeBuyer, CompanyName: "Acme"}
	if _, err := f.storeRepo.UpsertDirty(context.Background(), record); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	if _, err := f.svc.Pass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.storeRepo.MarkDelete(context.Background(), record.ID); err != nil {
		t.Fatalf("failed to mark delete: %v", err)
	}

	f.remote.deleteStoreErr = pkgerrors.New(pkgerrors.CodeNetworkUnreachable, "no route")
	summary, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Failures) != 1 || summary.Deleted != 0 {
		t.Fatalf("expected one failed delete, got %+v", summary)
	}
	got, err := f.storeRepo.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("expected the row to survive the failed delete: %v", err)
	}
	if got.SyncState != enums.SyncStatePendingDelete {
		t.Fatalf("expected the row to stay flagged, got %s", got.SyncState)
	}

	// A later pass with the network back drains it.
	f.remote.deleteStoreErr = nil
	retry, err := f.svc.Pass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retry.Deleted != 1 {
		t.Fatalf("expected the retry to push the delete, got %+v", retry)
	}
	if _, err := f.storeRepo.Get(context.Background(), record.ID); err == nil {
		t.Fatal("expected the row to be removed after the pushed delete")
	}
}

func TestSummaryRetryable(t *testing.T) {
	all := Summary{Failures: []EntityError{
		{Entity: "store", Key: "a", Err: pkgerrors.New(pkgerrors.CodeNetworkUnreachable, "no route")},
	}}
	if !all.Retryable() {
		t.Fatal("expected connectivity-only failures to be retryable")
	}

	mixed := Summary{Failures: []EntityError{
		{Entity: "store", Key: "a", Err: pkgerrors.New(pkgerrors.CodeNetworkUnreachable, "no route")},
		{Entity: "cart_line", Key: "b", Err: pkgerrors.New(pkgerrors.CodeServerRejected, "422")},
	}}
	if mixed.Retryable() {
		t.Fatal("expected a rejected entity to block immediate retry")
	}

	clean := Summary{}
	if clean.Retryable() {
		t.Fatal("expected a clean pass to not request a retry")
	}
}
