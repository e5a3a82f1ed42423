package enums

import (
	"fmt"
	"strings"
)

// SeatType identifies one of the two launch seat tiers.
type SeatType string

const (
	SeatTypeFounder SeatType = "founder"
	SeatTypePatron  SeatType = "patron"
)

var validSeatTypes = []SeatType{
	SeatTypeFounder,
	SeatTypePatron,
}

// SeatTypes returns every seat type in display order.
func SeatTypes() []SeatType {
	out := make([]SeatType, len(validSeatTypes))
	copy(out, validSeatTypes)
	return out
}

func (s SeatType) String() string {
	return string(s)
}

func (s SeatType) IsValid() bool {
	for _, candidate := range validSeatTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSeatType accepts the canonical names plus the legacy A/B tier letters.
func ParseSeatType(value string) (SeatType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "a":
		return SeatTypeFounder, nil
	case "b":
		return SeatTypePatron, nil
	}
	for _, candidate := range validSeatTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seat type %q", value)
}
