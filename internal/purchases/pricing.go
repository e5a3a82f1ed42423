package purchases

import (
	"fmt"

	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
)

// Tariffs maps each add-on to its fixed price in cents.
type Tariffs map[enums.AddOn]int64

// TariffsFromConfig reads add-on prices from launch config.
func TariffsFromConfig(cfg config.LaunchConfig) Tariffs {
	return Tariffs{
		enums.AddOnPatinaUpgrade: cfg.PatinaUpgradeCents,
		enums.AddOnDisplayPlinth: cfg.DisplayPlinthCents,
		enums.AddOnEngraving:     cfg.EngravingCents,
	}
}

// Quote computes the authoritative price. The discount applies to the seat only;
// add-ons are always charged in full.
func (t Tariffs) Quote(seatPriceCents int64, discountPercent int, addOns []enums.AddOn) (Price, error) {
	if discountPercent < 0 || discountPercent >= 100 {
		return Price{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 99 percent")
	}
	seen := map[enums.AddOn]struct{}{}
	var addOnsCents int64
	for _, addOn := range addOns {
		if !addOn.IsValid() {
			return Price{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown add-on %q", addOn))
		}
		if _, dup := seen[addOn]; dup {
			return Price{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("add-on %s listed twice", addOn))
		}
		seen[addOn] = struct{}{}
		addOnsCents += t[addOn]
	}
	discount := seatPriceCents * int64(discountPercent) / 100
	return Price{
		SeatPriceCents: seatPriceCents,
		DiscountCents:  discount,
		AddOnsCents:    addOnsCents,
		AmountCents:    seatPriceCents - discount + addOnsCents,
	}, nil
}

func hasAddOn(addOns []enums.AddOn, want enums.AddOn) bool {
	for _, a := range addOns {
		if a == want {
			return true
		}
	}
	return false
}
