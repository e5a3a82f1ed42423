package enums

import "fmt"

// PurchaseStatus moves pending -> completed or pending -> failed, once.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusPending,
	PurchaseStatusCompleted,
	PurchaseStatusFailed,
}

func (p PurchaseStatus) String() string {
	return string(p)
}

func (p PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}

// GiftStatus is independent of PurchaseStatus and never gates inventory.
type GiftStatus string

const (
	GiftStatusPending   GiftStatus = "pending"
	GiftStatusClaimed   GiftStatus = "claimed"
	GiftStatusCancelled GiftStatus = "cancelled"
)

var validGiftStatuses = []GiftStatus{
	GiftStatusPending,
	GiftStatusClaimed,
	GiftStatusCancelled,
}

func (g GiftStatus) String() string {
	return string(g)
}

func (g GiftStatus) IsValid() bool {
	for _, candidate := range validGiftStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ReconciliationReason says why a completed purchase needs an operator.
type ReconciliationReason string

const (
	// ReconciliationOversold means money was taken but commitSale found the tier full; no seat was counted.
	ReconciliationOversold ReconciliationReason = "oversold"
	// ReconciliationPromoConflict means the seat was counted but the partial promo had already been consumed.
	ReconciliationPromoConflict ReconciliationReason = "promo_conflict"
)

func (r ReconciliationReason) IsValid() bool {
	return r == ReconciliationOversold || r == ReconciliationPromoConflict
}
