package enums

import "fmt"

// AddOn is an optional extra sold alongside a seat at a fixed tariff.
type AddOn string

const (
	AddOnPatinaUpgrade AddOn = "patina_upgrade"
	AddOnDisplayPlinth AddOn = "display_plinth"
	AddOnEngraving     AddOn = "engraving"
)

var validAddOns = []AddOn{
	AddOnPatinaUpgrade,
	AddOnDisplayPlinth,
	AddOnEngraving,
}

func (a AddOn) String() string {
	return string(a)
}

func (a AddOn) IsValid() bool {
	for _, candidate := range validAddOns {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseAddOn(value string) (AddOn, error) {
	for _, candidate := range validAddOns {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid add-on %q", value)
}
