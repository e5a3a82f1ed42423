package payfast

import (
	"fmt"
	"strings"
)

// PaymentStatus is the payment_status value posted in an ITN.
type PaymentStatus string

const (
	StatusComplete  PaymentStatus = "COMPLETE"
	StatusFailed    PaymentStatus = "FAILED"
	StatusCancelled PaymentStatus = "CANCELLED"
	StatusPending   PaymentStatus = "PENDING"
)

// IsFailure reports whether the status ends the payment without money moving.
func (s PaymentStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusCancelled
}

// Notification is a parsed ITN. Fields keeps the raw pairs for signature checks.
type Notification struct {
	PaymentID   string
	GatewayRef  string
	MerchantID  string
	Status      PaymentStatus
	AmountGross string
	AmountCents int64
	Signature   string
	Fields      Fields
}

// ParseNotification decodes an ITN body. It does not verify the signature.
func ParseNotification(body []byte) (*Notification, error) {
	fields, err := ParseForm(body)
	if err != nil {
		return nil, err
	}
	n := &Notification{
		PaymentID:   strings.TrimSpace(fields.Get("m_payment_id")),
		GatewayRef:  strings.TrimSpace(fields.Get("pf_payment_id")),
		MerchantID:  strings.TrimSpace(fields.Get("merchant_id")),
		Status:      PaymentStatus(strings.ToUpper(strings.TrimSpace(fields.Get("payment_status")))),
		AmountGross: fields.Get("amount_gross"),
		Signature:   strings.TrimSpace(fields.Get(signatureField)),
		Fields:      fields,
	}
	if n.PaymentID == "" {
		return nil, fmt.Errorf("m_payment_id missing")
	}
	if n.Status == "" {
		return nil, fmt.Errorf("payment_status missing")
	}
	if n.AmountGross != "" {
		cents, err := AmountToCents(n.AmountGross)
		if err != nil {
			return nil, err
		}
		n.AmountCents = cents
	} else if n.Status == StatusComplete {
		return nil, fmt.Errorf("amount_gross missing")
	}
	return n, nil
}

// Verify checks the notification signature with the merchant passphrase.
func (n *Notification) Verify(passphrase string) bool {
	return Verify(n.Fields, n.Signature, passphrase)
}
