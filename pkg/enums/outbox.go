package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregatePurchase    OutboxAggregateType = "purchase"
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateInventory   OutboxAggregateType = "inventory"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchase,
	AggregateReservation,
	AggregateInventory,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the fact carried by an outbox row.
type OutboxEventType string

const (
	EventPurchaseCompleted OutboxEventType = "purchase_completed"
	EventPurchaseFlagged   OutboxEventType = "purchase_flagged"
	EventFireSaleChanged   OutboxEventType = "fire_sale_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseCompleted,
	EventPurchaseFlagged,
	EventFireSaleChanged,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
