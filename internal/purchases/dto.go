package purchases

import (
	"strings"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/castwell/launch-backend/pkg/payfast"
)

// Delivery is where the bronze ships. Line2 is the only optional field.
type Delivery struct {
	Name       string  `json:"name" validate:"required"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	PostalCode string  `json:"postalCode" validate:"required"`
	Country    string  `json:"country" validate:"required,iso3166_1_alpha2"`
	Phone      string  `json:"phone" validate:"required"`
}

// Validate runs the validate tags against the trimmed, upper-cased fields.
func (d Delivery) Validate() error {
	return validateFields("delivery", "delivery details are incomplete", d.normalized())
}

func (d Delivery) normalized() Delivery {
	out := Delivery{
		Name:       strings.TrimSpace(d.Name),
		Line1:      strings.TrimSpace(d.Line1),
		City:       strings.TrimSpace(d.City),
		PostalCode: strings.TrimSpace(d.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(d.Country)),
		Phone:      strings.TrimSpace(d.Phone),
	}
	if d.Line2 != nil {
		if line2 := strings.TrimSpace(*d.Line2); line2 != "" {
			out.Line2 = &line2
		}
	}
	return out
}

// Apply copies the normalised delivery fields onto a purchase row.
func (d Delivery) Apply(p *models.Purchase) {
	n := d.normalized()
	p.DeliveryName = n.Name
	p.DeliveryLine1 = n.Line1
	p.DeliveryLine2 = n.Line2
	p.DeliveryCity = n.City
	p.DeliveryPostalCode = n.PostalCode
	p.DeliveryCountry = n.Country
	p.DeliveryPhone = n.Phone
}

// Gift marks the seat as a present for someone else.
type Gift struct {
	RecipientName  string  `json:"recipientName" validate:"required"`
	RecipientEmail string  `json:"recipientEmail" validate:"required,email"`
	Message        *string `json:"message,omitempty"`
}

func (g Gift) Validate() error {
	return validateFields("gift", "gift details are incomplete", g.normalized())
}

func (g Gift) normalized() Gift {
	return Gift{
		RecipientName:  strings.TrimSpace(g.RecipientName),
		RecipientEmail: strings.ToLower(strings.TrimSpace(g.RecipientEmail)),
		Message:        g.Message,
	}
}

// InitiateInput is everything a buyer sends at checkout. Prices are never accepted from the client.
type InitiateInput struct {
	OwnerID    uuid.UUID
	OwnerEmail string
	SeatType   enums.SeatType
	AddOns     []enums.AddOn
	Delivery   Delivery
	Gift       *Gift
	PromoCode  *string
}

// InitiateResult carries the pending purchase and the gateway redirect.
type InitiateResult struct {
	Purchase *models.Purchase      `json:"purchase"`
	Payment  payfast.PaymentHandle `json:"payment"`
}

// Completion reports what MarkCompleted did. Applied is false when the purchase
// was already completed and nothing changed.
type Completion struct {
	Applied  bool
	Purchase *models.Purchase
}

// Flagged reports whether this completion needs an operator.
func (c Completion) Flagged() bool {
	return c.Applied && c.Purchase != nil && c.Purchase.NeedsReconciliation
}

// Actor is the authenticated caller.
type Actor struct {
	AccountID uuid.UUID
	Email     string
	IsAdmin   bool
}

// Price is the server-side breakdown of what a purchase costs.
type Price struct {
	SeatPriceCents int64
	DiscountCents  int64
	AddOnsCents    int64
	AmountCents    int64
}
