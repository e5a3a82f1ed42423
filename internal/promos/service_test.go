package promos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/internal/inventory"
	"github.com/castwell/launch-backend/internal/purchases"
	"github.com/castwell/launch-backend/internal/reservations"
	dbpkg "github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/dbtest"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/outbox"
)

type recordingHook struct {
	mu      sync.Mutex
	sources []string
	ids     []uuid.UUID
}

func (h *recordingHook) PurchaseCompleted(_ context.Context, purchase models.Purchase, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources = append(h.sources, source)
	h.ids = append(h.ids, purchase.ID)
}

type fixture struct {
	conn    *gorm.DB
	service *Service
	holds   *reservations.Manager
	hook    *recordingHook
}

func newFixture(t *testing.T, founderCapacity int) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	dbtest.SeedInventory(t, conn, enums.SeatTypeFounder, founderCapacity, 0, 500000)
	dbtest.SeedInventory(t, conn, enums.SeatTypePatron, 50, 0, 250000)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		Repository: inventory.NewRepository(conn),
		TxRunner:   dbpkg.Wrap(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Now:        clock,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	holds, err := reservations.NewManager(reservations.ManagerParams{
		Repository: reservations.NewRepository(conn),
		TxRunner:   dbpkg.Wrap(conn),
		Ledger:     ledger,
		TTL:        24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	hook := &recordingHook{}
	service, err := NewService(ServiceParams{
		Repository:   NewRepository(conn),
		Purchases:    purchases.NewRepository(conn),
		TxRunner:     dbpkg.Wrap(conn),
		Ledger:       ledger,
		Reservations: holds,
		Hook:         hook,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{conn: conn, service: service, holds: holds, hook: hook}
}

func testDelivery() purchases.Delivery {
	return purchases.Delivery{
		Name:       "Thandi Mokoena",
		Line1:      "12 Foundry Lane",
		City:       "Cape Town",
		PostalCode: "8001",
		Country:    "za",
		Phone:      "+27215550100",
	}
}

func founder() *enums.SeatType {
	seat := enums.SeatTypeFounder
	return &seat
}

func soldFor(t *testing.T, conn *gorm.DB, seatType enums.SeatType) int {
	t.Helper()
	var row models.InventoryRow
	if err := conn.Where("seat_type = ?", seatType).First(&row).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return row.Sold
}

func TestRedeemFullDiscountGrantsSeatOnce(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "gift-anna", SeatType: founder(), DiscountPercent: 100}); err != nil {
		t.Fatalf("create code: %v", err)
	}
	owner := uuid.New()

	purchase, err := f.service.Redeem(ctx, RedeemInput{Code: "GIFT-ANNA", OwnerID: owner, SeatType: enums.SeatTypeFounder, Delivery: testDelivery()})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if purchase.Status != enums.PurchaseStatusCompleted || purchase.AmountCents != 0 {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
	if purchase.SeatPriceCents != 500000 || purchase.DiscountCents != 500000 {
		t.Fatalf("unexpected pricing seat=%d discount=%d", purchase.SeatPriceCents, purchase.DiscountCents)
	}
	if purchase.DeliveryCountry != "ZA" {
		t.Fatalf("expected normalised country, got %s", purchase.DeliveryCountry)
	}
	if got := soldFor(t, f.conn, enums.SeatTypeFounder); got != 1 {
		t.Fatalf("expected sold 1, got %d", got)
	}

	var code models.PromoCode
	if err := f.conn.Where("code = ?", "GIFT-ANNA").First(&code).Error; err != nil {
		t.Fatalf("load code: %v", err)
	}
	if !code.Used || code.ResultingPurchaseID == nil || *code.ResultingPurchaseID != purchase.ID {
		t.Fatalf("code not consumed: %+v", code)
	}
	if code.RedeemedBy == nil || *code.RedeemedBy != owner {
		t.Fatalf("expected redeemer %s, got %v", owner, code.RedeemedBy)
	}
	if len(f.hook.sources) != 1 || f.hook.sources[0] != "promo" || f.hook.ids[0] != purchase.ID {
		t.Fatalf("unexpected hook calls %+v", f.hook.sources)
	}

	_, err = f.service.Redeem(ctx, RedeemInput{Code: "gift-anna", OwnerID: uuid.New(), SeatType: enums.SeatTypeFounder, Delivery: testDelivery()})
	if !pkgerrors.IsCode(err, pkgerrors.CodePromoUsed) {
		t.Fatalf("expected promo used, got %v", err)
	}
	if got := soldFor(t, f.conn, enums.SeatTypeFounder); got != 1 {
		t.Fatalf("second redemption changed sold to %d", got)
	}
	var count int64
	if err := f.conn.Model(&models.Purchase{}).Count(&count).Error; err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one purchase, got %d", count)
	}
}

func TestRedeemConcurrentAttemptsSucceedOnce(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "ONCE", DiscountPercent: 100}); err != nil {
		t.Fatalf("create code: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Redeem(ctx, RedeemInput{Code: "ONCE", OwnerID: uuid.New(), SeatType: enums.SeatTypePatron, Delivery: testDelivery()})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !pkgerrors.IsCode(err, pkgerrors.CodePromoUsed) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("expected one redemption, got %d", succeeded)
	}
	if got := soldFor(t, f.conn, enums.SeatTypePatron); got != 1 {
		t.Fatalf("expected sold 1, got %d", got)
	}
}

func TestRedeemRejectsWrongSeatType(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "FOUNDERONLY", SeatType: founder(), DiscountPercent: 100}); err != nil {
		t.Fatalf("create code: %v", err)
	}
	_, err := f.service.Redeem(ctx, RedeemInput{Code: "FOUNDERONLY", OwnerID: uuid.New(), SeatType: enums.SeatTypePatron, Delivery: testDelivery()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeSeatTypeMismatch) {
		t.Fatalf("expected seat type mismatch, got %v", err)
	}
	if got := soldFor(t, f.conn, enums.SeatTypePatron); got != 0 {
		t.Fatalf("expected sold 0, got %d", got)
	}
}

func TestRedeemRejectsPartialDiscount(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "TENOFF", DiscountPercent: 10}); err != nil {
		t.Fatalf("create code: %v", err)
	}
	_, err := f.service.Redeem(ctx, RedeemInput{Code: "TENOFF", OwnerID: uuid.New(), SeatType: enums.SeatTypeFounder, Delivery: testDelivery()})
	if !pkgerrors.IsCode(err, pkgerrors.CodePromoInvalid) {
		t.Fatalf("expected promo invalid, got %v", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	f := newFixture(t, 50)
	_, err := f.service.Redeem(context.Background(), RedeemInput{Code: "NOPE", OwnerID: uuid.New(), SeatType: enums.SeatTypeFounder, Delivery: testDelivery()})
	if !pkgerrors.IsCode(err, pkgerrors.CodePromoInvalid) {
		t.Fatalf("expected promo invalid, got %v", err)
	}
}

func TestRedeemValidatesDelivery(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "FREE", DiscountPercent: 100}); err != nil {
		t.Fatalf("create code: %v", err)
	}
	delivery := testDelivery()
	delivery.Phone = ""
	_, err := f.service.Redeem(ctx, RedeemInput{Code: "FREE", OwnerID: uuid.New(), SeatType: enums.SeatTypeFounder, Delivery: delivery})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var code models.PromoCode
	if err := f.conn.Where("code = ?", "FREE").First(&code).Error; err != nil {
		t.Fatalf("load code: %v", err)
	}
	if code.Used {
		t.Fatalf("code consumed by a rejected redemption")
	}
}

func TestRedeemSoldOutLeavesCodeUnused(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "LATE", DiscountPercent: 100}); err != nil {
		t.Fatalf("create code: %v", err)
	}
	other := uuid.New()
	if _, err := f.holds.Create(ctx, reservations.CreateInput{OwnerID: &other, SeatType: enums.SeatTypeFounder}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	_, err := f.service.Redeem(ctx, RedeemInput{Code: "LATE", OwnerID: uuid.New(), SeatType: enums.SeatTypeFounder, Delivery: testDelivery()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeSoldOut) {
		t.Fatalf("expected sold out, got %v", err)
	}
	var code models.PromoCode
	if err := f.conn.Where("code = ?", "LATE").First(&code).Error; err != nil {
		t.Fatalf("load code: %v", err)
	}
	if code.Used {
		t.Fatalf("code consumed by a sold out redemption")
	}
}

func TestRedeemConvertsCallersOwnHold(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "MINE", DiscountPercent: 100}); err != nil {
		t.Fatalf("create code: %v", err)
	}
	owner := uuid.New()
	hold, err := f.holds.Create(ctx, reservations.CreateInput{OwnerID: &owner, SeatType: enums.SeatTypeFounder})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	purchase, err := f.service.Redeem(ctx, RedeemInput{Code: "MINE", OwnerID: owner, SeatType: enums.SeatTypeFounder, Delivery: testDelivery()})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if purchase.ReservationID == nil || *purchase.ReservationID != hold.ID {
		t.Fatalf("purchase not linked to hold")
	}
	var stored models.Reservation
	if err := f.conn.First(&stored, "id = ?", hold.ID).Error; err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if stored.Status != enums.ReservationStatusConverted {
		t.Fatalf("expected converted hold, got %s", stored.Status)
	}
	if got := soldFor(t, f.conn, enums.SeatTypeFounder); got != 1 {
		t.Fatalf("expected sold 1, got %d", got)
	}
}

func TestLookupAndConsume(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateInput{Code: "SPRING15", DiscountPercent: 15}); err != nil {
		t.Fatalf("create code: %v", err)
	}

	code, err := f.service.Lookup(ctx, nil, " spring15 ", enums.SeatTypePatron)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if code.DiscountPercent != 15 {
		t.Fatalf("unexpected discount %d", code.DiscountPercent)
	}

	ok, err := f.service.Consume(ctx, nil, "SPRING15", uuid.New(), uuid.New())
	if err != nil || !ok {
		t.Fatalf("expected consume to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = f.service.Consume(ctx, nil, "SPRING15", uuid.New(), uuid.New())
	if err != nil || ok {
		t.Fatalf("expected second consume to report false, ok=%v err=%v", ok, err)
	}
	if _, err := f.service.Lookup(ctx, nil, "SPRING15", enums.SeatTypePatron); !pkgerrors.IsCode(err, pkgerrors.CodePromoUsed) {
		t.Fatalf("expected promo used, got %v", err)
	}
}

func TestCreateGeneratesAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	generated, err := f.service.Create(ctx, CreateInput{DiscountPercent: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(generated.Code) != generatedCodeLength {
		t.Fatalf("unexpected generated code %q", generated.Code)
	}
	if _, err := f.service.Create(ctx, CreateInput{Code: "dup", DiscountPercent: 50}); err != nil {
		t.Fatalf("create dup: %v", err)
	}
	if _, err := f.service.Create(ctx, CreateInput{Code: "DUP", DiscountPercent: 50}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	for _, percent := range []int{0, 101} {
		if _, err := f.service.Create(ctx, CreateInput{Code: "BAD", DiscountPercent: percent}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("percent %d: expected validation error, got %v", percent, err)
		}
	}

	rows, err := f.service.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(rows))
	}
}
