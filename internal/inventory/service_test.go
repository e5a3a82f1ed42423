package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/dbtest"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/outbox"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLedger(t *testing.T, conn *gorm.DB, clock *testClock) *Ledger {
	t.Helper()
	ledger, err := NewLedger(LedgerParams{
		Repository: NewRepository(conn),
		TxRunner:   dbpkg.Wrap(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Logger:     logger.Nop(),
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger
}

func TestCommitSaleNeverExceedsCapacity(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedInventory(t, conn, enums.SeatTypeFounder, 5, 0, 500000)
	ledger := newTestLedger(t, conn, &testClock{now: time.Now().UTC()})

	const attempts = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		soldOut  int
		failures []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.CommitSale(context.Background(), nil, enums.SeatTypeFounder)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case pkgerrors.IsCode(err, pkgerrors.CodeSoldOut):
				soldOut++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if success != 5 || soldOut != attempts-5 {
		t.Fatalf("expected 5 successes and %d sold out, got %d and %d", attempts-5, success, soldOut)
	}
	var row models.InventoryRow
	if err := conn.First(&row, "seat_type = ?", enums.SeatTypeFounder).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Sold != 5 {
		t.Fatalf("expected sold 5, got %d", row.Sold)
	}
}

func TestCommitSaleRejectsUnknownSeatType(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := newTestLedger(t, conn, &testClock{now: time.Now().UTC()})
	err := ledger.CommitSale(context.Background(), nil, enums.SeatType("gallery"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFireSaleRoundTrip(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedLaunch(t, conn)
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledger := newTestLedger(t, conn, clock)
	ctx := context.Background()

	if _, err := ledger.ActivateFireSale(ctx, FireSaleInput{FounderPriceCents: 400000, PatronPriceCents: 200000, DurationHours: 24}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	clock.Advance(23 * time.Hour)
	avail, err := ledger.GetAvailability(ctx, enums.SeatTypeFounder)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.EffectivePriceCents != 400000 || !avail.FireSaleActive {
		t.Fatalf("expected fire sale price, got %+v", avail)
	}

	clock.Advance(2 * time.Hour)
	avail, err = ledger.GetAvailability(ctx, enums.SeatTypeFounder)
	if err != nil {
		t.Fatalf("availability after expiry: %v", err)
	}
	if avail.EffectivePriceCents != 500000 || avail.FireSaleActive {
		t.Fatalf("expected base price after expiry, got %+v", avail)
	}

	var row models.InventoryRow
	if err := conn.First(&row, "seat_type = ?", enums.SeatTypeFounder).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.FireSalePriceCents != nil || row.FireSaleEndsAt != nil {
		t.Fatalf("expected fire sale fields cleared by read, got %+v", row)
	}
	// The patron row was not read yet and still carries the stale window.
	var patron models.InventoryRow
	if err := conn.First(&patron, "seat_type = ?", enums.SeatTypePatron).Error; err != nil {
		t.Fatalf("load patron: %v", err)
	}
	if patron.FireSaleEndsAt == nil {
		t.Fatalf("expected patron fire sale untouched until read")
	}

	var events int64
	conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventFireSaleChanged).Count(&events)
	if events != 2 {
		t.Fatalf("expected 2 fire sale events, got %d", events)
	}
}

func TestDeactivateFireSale(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedLaunch(t, conn)
	clock := &testClock{now: time.Now().UTC()}
	ledger := newTestLedger(t, conn, clock)
	ctx := context.Background()

	if _, err := ledger.ActivateFireSale(ctx, FireSaleInput{FounderPriceCents: 1, PatronPriceCents: 1, DurationHours: 1}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := ledger.DeactivateFireSale(ctx); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	list, err := ledger.ListAvailability(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 seat types, got %d", len(list))
	}
	for _, a := range list {
		if a.FireSaleActive || a.EffectivePriceCents != a.BasePriceCents {
			t.Fatalf("expected base pricing, got %+v", a)
		}
	}
}

func TestActivateFireSaleValidates(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := newTestLedger(t, conn, &testClock{now: time.Now().UTC()})
	cases := []FireSaleInput{
		{FounderPriceCents: 0, PatronPriceCents: 1, DurationHours: 1},
		{FounderPriceCents: 1, PatronPriceCents: 1, DurationHours: 0},
	}
	for _, input := range cases {
		if _, err := ledger.ActivateFireSale(context.Background(), input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestSnapshotExpiresDueReservations(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedInventory(t, conn, enums.SeatTypePatron, 2, 0, 250000)
	clock := &testClock{now: time.Now().UTC()}
	ledger := newTestLedger(t, conn, clock)
	owner := uuid.New()

	stale := models.Reservation{
		SeatType:  enums.SeatTypePatron,
		OwnerID:   &owner,
		Status:    enums.ReservationStatusActive,
		ExpiresAt: clock.Now().Add(-time.Second),
	}
	live := models.Reservation{
		SeatType:  enums.SeatTypePatron,
		Status:    enums.ReservationStatusActive,
		ExpiresAt: clock.Now().Add(time.Hour),
	}
	if err := conn.Create(&stale).Error; err != nil {
		t.Fatalf("seed stale: %v", err)
	}
	if err := conn.Create(&live).Error; err != nil {
		t.Fatalf("seed live: %v", err)
	}

	avail, err := ledger.GetAvailability(context.Background(), enums.SeatTypePatron)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.ActiveReservations != 1 || avail.Available != 1 {
		t.Fatalf("expected only the live hold to count, got %+v", avail)
	}
	var reloaded models.Reservation
	if err := conn.First(&reloaded, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.ReservationStatusExpired {
		t.Fatalf("expected stale hold expired, got %s", reloaded.Status)
	}

	err = conn.Transaction(func(tx *gorm.DB) error {
		snap, err := ledger.Snapshot(context.Background(), tx, enums.SeatTypePatron, SnapshotOptions{Lock: true, ExcludeReservationID: &live.ID})
		if err != nil {
			return err
		}
		if snap.ActiveReservations != 0 || snap.Available() != 2 {
			t.Errorf("expected excluded hold to be ignored, got %+v", snap)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
}

func TestGetAvailabilityUnknownSeatType(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := newTestLedger(t, conn, &testClock{now: time.Now().UTC()})
	if _, err := ledger.GetAvailability(context.Background(), enums.SeatTypeFounder); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unseeded row, got %v", err)
	}
}

func TestSeatTypeAggregateIDStable(t *testing.T) {
	if SeatTypeAggregateID(enums.SeatTypeFounder) != SeatTypeAggregateID(enums.SeatTypeFounder) {
		t.Fatalf("aggregate id must be deterministic")
	}
	if SeatTypeAggregateID(enums.SeatTypeFounder) == SeatTypeAggregateID(enums.SeatTypePatron) {
		t.Fatalf("seat types must not share an aggregate id")
	}
}
