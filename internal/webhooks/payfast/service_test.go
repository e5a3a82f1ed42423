package payfastwebhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/internal/fulfillment"
	"github.com/castwell/launch-backend/internal/inventory"
	"github.com/castwell/launch-backend/internal/purchases"
	"github.com/castwell/launch-backend/internal/reservations"
	"github.com/castwell/launch-backend/pkg/config"
	dbpkg "github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/dbtest"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/outbox"
	"github.com/castwell/launch-backend/pkg/payfast"
)

const (
	testMerchantID = "10000100"
	testPassphrase = "jt7NOE43FZPn"
)

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) Notification(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type fixture struct {
	conn      *gorm.DB
	purchases *purchases.Service
	outbox    *outbox.Repository
	service   *Service
	recorder  *outcomeRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	dbtest.SeedLaunch(t, conn)
	tx := dbpkg.Wrap(conn)
	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logger.Nop())

	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		Repository: inventory.NewRepository(conn),
		TxRunner:   tx,
		Outbox:     outboxSvc,
		Now:        func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	holds, err := reservations.NewManager(reservations.ManagerParams{
		Repository: reservations.NewRepository(conn),
		TxRunner:   tx,
		Ledger:     ledger,
		TTL:        24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	purchaseSvc, err := purchases.NewService(purchases.ServiceParams{
		Repository:   purchases.NewRepository(conn),
		TxRunner:     tx,
		Ledger:       ledger,
		Reservations: holds,
		Checkout: payfast.NewCheckout(config.PayFastConfig{
			MerchantID:  testMerchantID,
			MerchantKey: "46f0cd694581a",
			Passphrase:  testPassphrase,
			ProcessURL:  "https://sandbox.payfast.co.za/eng/process",
		}),
		Launch: config.LaunchConfig{ReservationTTL: 24 * time.Hour, AmountToleranceCents: 1},
	})
	if err != nil {
		t.Fatalf("new purchase service: %v", err)
	}
	hook, err := fulfillment.NewOutboxHook(fulfillment.OutboxHookParams{TxRunner: tx, Outbox: outboxSvc})
	if err != nil {
		t.Fatalf("new hook: %v", err)
	}
	recorder := &outcomeRecorder{}
	service, err := NewService(ServiceParams{
		Purchases:  purchaseSvc,
		Hook:       hook,
		Metrics:    recorder,
		MerchantID: testMerchantID,
		Passphrase: testPassphrase,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{conn: conn, purchases: purchaseSvc, outbox: outboxRepo, service: service, recorder: recorder}
}

func (f fixture) initiate(t *testing.T) *models.Purchase {
	t.Helper()
	res, err := f.purchases.Initiate(context.Background(), purchases.InitiateInput{
		OwnerID:    uuid.New(),
		OwnerEmail: "buyer@example.com",
		SeatType:   enums.SeatTypeFounder,
		Delivery: purchases.Delivery{
			Name:       "Ayanda Khumalo",
			Line1:      "88 Crucible Road",
			City:       "Durban",
			PostalCode: "4001",
			Country:    "ZA",
			Phone:      "+27315550123",
		},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return res.Purchase
}

// signedBody builds an ITN body the way PayFast posts it, signature last.
func signedBody(t *testing.T, passphrase string, pairs ...string) []byte {
	t.Helper()
	body := ""
	for i := 0; i+1 < len(pairs); i += 2 {
		if body != "" {
			body += "&"
		}
		body += pairs[i] + "=" + pairs[i+1]
	}
	fields, err := payfast.ParseForm([]byte(body))
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	return []byte(body + "&signature=" + payfast.Sign(fields, passphrase))
}

func itn(t *testing.T, purchaseID, status, amount string) []byte {
	return signedBody(t, testPassphrase,
		"m_payment_id", purchaseID,
		"pf_payment_id", "1089250",
		"payment_status", status,
		"item_name", "Castwell+Founder+Seat",
		"amount_gross", amount,
		"merchant_id", testMerchantID,
	)
}

func (f fixture) reload(t *testing.T, id uuid.UUID) models.Purchase {
	t.Helper()
	var p models.Purchase
	if err := f.conn.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	return p
}

func (f fixture) sold(t *testing.T) int {
	t.Helper()
	var row models.InventoryRow
	if err := f.conn.Where("seat_type = ?", enums.SeatTypeFounder).First(&row).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return row.Sold
}

func TestCompletionAppliesOnceAcrossRedeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.initiate(t)
	body := itn(t, p.ID.String(), "COMPLETE", payfast.FormatCents(p.AmountCents))

	outcome, err := f.service.HandleNotification(ctx, body)
	if err != nil || outcome != OutcomeCompleted {
		t.Fatalf("first delivery outcome=%s err=%v", outcome, err)
	}
	for i := 0; i < 3; i++ {
		outcome, err := f.service.HandleNotification(ctx, body)
		if err != nil || outcome != OutcomeReplayed {
			t.Fatalf("redelivery %d outcome=%s err=%v", i, outcome, err)
		}
	}

	stored := f.reload(t, p.ID)
	if stored.Status != enums.PurchaseStatusCompleted || stored.PaymentReference == nil || *stored.PaymentReference != "1089250" {
		t.Fatalf("unexpected purchase %+v", stored)
	}
	if got := f.sold(t); got != 1 {
		t.Fatalf("expected sold 1, got %d", got)
	}
	events, err := f.outbox.ListForAggregate(ctx, enums.AggregatePurchase, p.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.EventPurchaseCompleted {
		t.Fatalf("expected one completion event, got %+v", events)
	}
	if len(f.recorder.outcomes) != 4 || f.recorder.outcomes[0] != "completed" || f.recorder.outcomes[3] != "replayed" {
		t.Fatalf("unexpected outcomes %v", f.recorder.outcomes)
	}
}

func TestTamperedAmountLeavesPurchasePending(t *testing.T) {
	f := newFixture(t)
	p := f.initiate(t)
	body := itn(t, p.ID.String(), "COMPLETE", "1.00")

	outcome, err := f.service.HandleNotification(context.Background(), body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}
	if outcome != OutcomeAmountMismatch || Retryable(err) {
		t.Fatalf("unexpected outcome %s retryable=%v", outcome, Retryable(err))
	}
	if stored := f.reload(t, p.ID); stored.Status != enums.PurchaseStatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}
	if got := f.sold(t); got != 0 {
		t.Fatalf("expected sold 0, got %d", got)
	}
}

func TestSignatureFailuresChangeNothing(t *testing.T) {
	f := newFixture(t)
	p := f.initiate(t)
	amount := payfast.FormatCents(p.AmountCents)

	cases := map[string][]byte{
		"wrong passphrase": signedBody(t, "not-the-passphrase",
			"m_payment_id", p.ID.String(), "payment_status", "COMPLETE", "amount_gross", amount, "merchant_id", testMerchantID),
		"tampered after signing": []byte(string(itn(t, p.ID.String(), "COMPLETE", amount)) + "&amount_fee=-1.00"),
		"other merchant": signedBody(t, testPassphrase,
			"m_payment_id", p.ID.String(), "payment_status", "COMPLETE", "amount_gross", amount, "merchant_id", "99999999"),
		"unsigned": []byte(fmt.Sprintf("m_payment_id=%s&payment_status=COMPLETE&amount_gross=%s", p.ID, amount)),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			outcome, err := f.service.HandleNotification(context.Background(), body)
			if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
			if outcome != OutcomeInvalidSignature {
				t.Fatalf("unexpected outcome %s", outcome)
			}
		})
	}
	if stored := f.reload(t, p.ID); stored.Status != enums.PurchaseStatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}
	if got := f.sold(t); got != 0 {
		t.Fatalf("expected sold 0, got %d", got)
	}
}

func TestFailureNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.initiate(t)
	outcome, err := f.service.HandleNotification(ctx, itn(t, cancelled.ID.String(), "CANCELLED", payfast.FormatCents(cancelled.AmountCents)))
	if err != nil || outcome != OutcomeFailed {
		t.Fatalf("cancel outcome=%s err=%v", outcome, err)
	}
	if stored := f.reload(t, cancelled.ID); stored.Status != enums.PurchaseStatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}

	paid := f.initiate(t)
	amount := payfast.FormatCents(paid.AmountCents)
	if _, err := f.service.HandleNotification(ctx, itn(t, paid.ID.String(), "COMPLETE", amount)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	outcome, err = f.service.HandleNotification(ctx, itn(t, paid.ID.String(), "FAILED", amount))
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("late failure outcome=%s err=%v", outcome, err)
	}
	if stored := f.reload(t, paid.ID); stored.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("completed sale downgraded to %s", stored.Status)
	}

	pending := f.initiate(t)
	outcome, err = f.service.HandleNotification(ctx, itn(t, pending.ID.String(), "PENDING", payfast.FormatCents(pending.AmountCents)))
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("pending outcome=%s err=%v", outcome, err)
	}
}

func TestUnknownAndMalformedNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.service.HandleNotification(ctx, itn(t, uuid.NewString(), "COMPLETE", "100.00"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || outcome != OutcomeUnknownPurchase {
		t.Fatalf("unknown purchase outcome=%s err=%v", outcome, err)
	}
	outcome, err = f.service.HandleNotification(ctx, itn(t, "order-17", "COMPLETE", "100.00"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || outcome != OutcomeUnknownPurchase {
		t.Fatalf("foreign payment id outcome=%s err=%v", outcome, err)
	}
	outcome, err = f.service.HandleNotification(ctx, []byte("payment_status=COMPLETE"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) || outcome != OutcomeMalformed {
		t.Fatalf("malformed outcome=%s err=%v", outcome, err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{pkgerrors.New(pkgerrors.CodeInvalidSignature, "bad"), false},
		{pkgerrors.New(pkgerrors.CodeAmountMismatch, "bad"), false},
		{pkgerrors.New(pkgerrors.CodeNotFound, "missing"), false},
		{pkgerrors.New(pkgerrors.CodeInternal, "db down"), true},
		{errors.New("connection reset"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
