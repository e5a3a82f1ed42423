package enums

import "fmt"

// ReservationStatus tracks a seat hold. Only active is non-terminal.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusConverted ReservationStatus = "converted"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusActive,
	ReservationStatusConverted,
	ReservationStatusExpired,
	ReservationStatusCancelled,
}

func (r ReservationStatus) String() string {
	return string(r)
}

func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

func (r ReservationStatus) IsTerminal() bool {
	return r.IsValid() && r != ReservationStatusActive
}

func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
