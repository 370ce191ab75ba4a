package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-mobile/pkg/cache"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache/models"
	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	client, err := cache.NewWithConn(conn)
	if err != nil {
		t.Fatalf("failed to build cache client: %v", err)
	}
	return NewRepository(client)
}

func seedLine(t *testing.T, repo *Repository, line models.CartLine) models.CartLine {
	t.Helper()
	if err := repo.base.DB(context.Background()).Create(&line).Error; err != nil {
		t.Fatalf("failed to seed line: %v", err)
	}
	return line
}

func TestUpsertDirtyNewLineBecomesPendingCreate(t *testing.T) {
	repo := newTestRepository(t)

	saved, err := repo.UpsertDirty(context.Background(), models.CartLine{
		CartID:         uuid.New(),
		ProductID:      uuid.New(),
		ProductSKU:     "SKU-1",
		Qty:            2,
		UnitPriceCents: 1200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.SyncState != enums.SyncStatePendingCreate {
		t.Fatalf("expected pending_create, got %s", saved.SyncState)
	}
}

func TestUpsertDirtyCleanLineBecomesPendingUpdate(t *testing.T) {
	repo := newTestRepository(t)
	line := seedLine(t, repo, models.CartLine{
		CartID:         uuid.New(),
		ProductID:      uuid.New(),
		ProductSKU:     "SKU-1",
		Qty:            1,
		UnitPriceCents: 1200,
		SyncState:      enums.SyncStateClean,
	})

	line.Qty = 5
	saved, err := repo.UpsertDirty(context.Background(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.SyncState != enums.SyncStatePendingUpdate {
		t.Fatalf("expected pending_update, got %s", saved.SyncState)
	}
	if saved.Qty != 5 {
		t.Fatalf("expected qty 5, got %d", saved.Qty)
	}
}

func TestUpsertDirtyPendingCreateStaysPendingCreate(t *testing.T) {
	repo := newTestRepository(t)
	line := seedLine(t, repo, models.CartLine{
		CartID:         uuid.New(),
		ProductID:      uuid.New(),
		ProductSKU:     "SKU-1",
		Qty:            1,
		UnitPriceCents: 1200,
		SyncState:      enums.SyncStatePendingCreate,
	})

	line.Qty = 3
	saved, err := repo.UpsertDirty(context.Background(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.SyncState != enums.SyncStatePendingCreate {
		t.Fatalf("expected pending_create to be preserved, got %s", saved.SyncState)
	}
}

func TestUpsertDirtyRejectsPendingDelete(t *testing.T) {
	repo := newTestRepository(t)
	line := seedLine(t, repo, models.CartLine{
		CartID:         uuid.New(),
		ProductID:      uuid.New(),
		ProductSKU:     "SKU-1",
		Qty:            1,
		UnitPriceCents: 1200,
		SyncState:      enums.SyncStatePendingDelete,
	})

	_, err := repo.UpsertDirty(context.Background(), line)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestListExcludesPendingDelete(t *testing.T) {
	repo := newTestRepository(t)
	cartID := uuid.New()
	seedLine(t, repo, models.CartLine{
		CartID: cartID, ProductID: uuid.New(), ProductSKU: "A", Qty: 1, SyncState: enums.SyncStateClean,
	})
	seedLine(t, repo, models.CartLine{
		CartID: cartID, ProductID: uuid.New(), ProductSKU: "B", Qty: 1, SyncState: enums.SyncStatePendingDelete,
	})

	lines, err := repo.List(context.Background(), cartID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 || lines[0].ProductSKU != "A" {
		t.Fatalf("expected only the live line, got %+v", lines)
	}

	all, err := repo.List(context.Background(), cartID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both lines when including pending deletes, got %d", len(all))
	}
}

func TestReplaceCleanPreservesDirtyRows(t *testing.T) {
	repo := newTestRepository(t)
	cartID := uuid.New()
	staleID := uuid.New()
	dirtyID := uuid.New()
	remoteID := uuid.New()

	seedLine(t, repo, models.CartLine{
		CartID: cartID, ProductID: staleID, ProductSKU: "STALE", Qty: 1, SyncState: enums.SyncStateClean,
	})
	seedLine(t, repo, models.CartLine{
		CartID: cartID, ProductID: dirtyID, ProductSKU: "DIRTY", Qty: 9, SyncState: enums.SyncStatePendingUpdate,
	})

	err := repo.ReplaceClean(context.Background(), cartID, []models.CartLine{
		{ProductID: remoteID, ProductSKU: "REMOTE", Qty: 2},
		// The server's copy of the dirty line must not clobber the local edit.
		{ProductID: dirtyID, ProductSKU: "DIRTY", Qty: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines, err := repo.List(context.Background(), cartID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected two lines after reconcile, got %d", len(lines))
	}
	byProduct := map[uuid.UUID]models.CartLine{}
	for _, line := range lines {
		byProduct[line.ProductID] = line
	}
	if _, ok := byProduct[staleID]; ok {
		t.Fatal("expected stale clean line to be dropped")
	}
	if got := byProduct[dirtyID]; got.Qty != 9 || got.SyncState != enums.SyncStatePendingUpdate {
		t.Fatalf("expected dirty line to be preserved, got %+v", got)
	}
	if got := byProduct[remoteID]; got.SyncState != enums.SyncStateClean {
		t.Fatalf("expected remote line to land clean, got %+v", got)
	}
}

func TestMarkDeleteMissingLineIsNoop(t *testing.T) {
	repo := newTestRepository(t)

	marked, err := repo.MarkDelete(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marked {
		t.Fatal("expected missing line to be a no-op")
	}
}

func TestClearDirtyRemovesPendingDeleteRow(t *testing.T) {
	repo := newTestRepository(t)
	line := seedLine(t, repo, models.CartLine{
		CartID: uuid.New(), ProductID: uuid.New(), ProductSKU: "A", Qty: 1, SyncState: enums.SyncStatePendingDelete,
	})

	pushed, err := repo.Get(context.Background(), line.CartID, line.ProductID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.ClearDirty(context.Background(), *pushed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = repo.Get(context.Background(), line.CartID, line.ProductID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected row to be gone, got %v", err)
	}
}

func TestClearDirtySettlesPendingUpdate(t *testing.T) {
	repo := newTestRepository(t)
	attempts := 3
	msg := "boom"
	line := seedLine(t, repo, models.CartLine{
		CartID: uuid.New(), ProductID: uuid.New(), ProductSKU: "A", Qty: 1,
		SyncState: enums.SyncStatePendingUpdate, SyncAttempts: attempts, LastSyncError: &msg,
	})

	pushed, err := repo.Get(context.Background(), line.CartID, line.ProductID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.ClearDirty(context.Background(), *pushed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(context.Background(), line.CartID, line.ProductID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SyncState != enums.SyncStateClean || got.SyncAttempts != 0 || got.LastSyncError != nil {
		t.Fatalf("expected settled line, got %+v", got)
	}
}

func TestClearDirtyLeavesSupersededRowDirty(t *testing.T) {
	repo := newTestRepository(t)
	line := seedLine(t, repo, models.CartLine{
		CartID: uuid.New(), ProductID: uuid.New(), ProductSKU: "A", Qty: 2, SyncState: enums.SyncStatePendingUpdate,
	})

	pushed, err := repo.Get(context.Background(), line.CartID, line.ProductID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A newer edit lands after the snapshot was sent.
	if _, err := repo.UpsertDirty(context.Background(), models.CartLine{
		CartID: line.CartID, ProductID: line.ProductID, ProductSKU: "A", Qty: 7,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.ClearDirty(context.Background(), *pushed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(context.Background(), line.CartID, line.ProductID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.SyncState.IsDirty() || got.Qty != 7 {
		t.Fatalf("expected the newer edit to stay dirty, got %+v", got)
	}
}

func TestRecordSyncFailureBumpsAttempts(t *testing.T) {
	repo := newTestRepository(t)
	line := seedLine(t, repo, models.CartLine{
		CartID: uuid.New(), ProductID: uuid.New(), ProductSKU: "A", Qty: 1, SyncState: enums.SyncStatePendingCreate,
	})

	cause := pkgerrors.New(pkgerrors.CodeServerRejected, "rejected")
	if err := repo.RecordSyncFailure(context.Background(), line.CartID, line.ProductID, cause); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.RecordSyncFailure(context.Background(), line.CartID, line.ProductID, cause); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(context.Background(), line.CartID, line.ProductID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SyncAttempts != 2 {
		t.Fatalf("expected two recorded attempts, got %d", got.SyncAttempts)
	}
	if got.LastSyncError == nil || *got.LastSyncError == "" {
		t.Fatal("expected last sync error to be recorded")
	}
	if got.SyncState != enums.SyncStatePendingCreate {
		t.Fatalf("expected line to stay dirty, got %s", got.SyncState)
	}
}

func TestListDirtyScopesToCart(t *testing.T) {
	repo := newTestRepository(t)
	cartA := uuid.New()
	cartB := uuid.New()
	seedLine(t, repo, models.CartLine{CartID: cartA, ProductID: uuid.New(), ProductSKU: "A", Qty: 1, SyncState: enums.SyncStatePendingCreate})
	seedLine(t, repo, models.CartLine{CartID: cartA, ProductID: uuid.New(), ProductSKU: "B", Qty: 1, SyncState: enums.SyncStateClean})
	seedLine(t, repo, models.CartLine{CartID: cartB, ProductID: uuid.New(), ProductSKU: "C", Qty: 1, SyncState: enums.SyncStatePendingDelete})

	all, err := repo.ListDirty(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two dirty lines, got %d", len(all))
	}

	scoped, err := repo.ListDirty(context.Background(), &cartA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ProductSKU != "A" {
		t.Fatalf("expected one dirty line in cart A, got %+v", scoped)
	}
}
