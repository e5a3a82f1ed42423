package payfast

import (
	"errors"
	"net/url"
	"strings"

	"github.com/castwell/launch-backend/pkg/config"
)

// PaymentRequest describes one hosted-checkout redirect.
type PaymentRequest struct {
	PaymentID   string
	AmountCents int64
	ItemName    string
	BuyerEmail  string
	FirstName   string
}

// PaymentHandle is what the client needs to send the buyer to PayFast.
type PaymentHandle struct {
	RedirectURL string `json:"redirectUrl"`
	PaymentID   string `json:"paymentId"`
	Amount      string `json:"amount"`
	Signature   string `json:"signature"`
}

type Checkout struct {
	cfg config.PayFastConfig
}

func NewCheckout(cfg config.PayFastConfig) *Checkout {
	return &Checkout{cfg: cfg}
}

// Handle builds the signed redirect. Field order follows the PayFast attribute list
// because the signature depends on it.
func (c *Checkout) Handle(req PaymentRequest) (PaymentHandle, error) {
	if c.cfg.MerchantID == "" || c.cfg.MerchantKey == "" {
		return PaymentHandle{}, errors.New("payfast merchant credentials are not configured")
	}
	if req.PaymentID == "" {
		return PaymentHandle{}, errors.New("payment id is required")
	}
	if req.AmountCents <= 0 {
		return PaymentHandle{}, errors.New("amount must be positive")
	}

	amount := FormatCents(req.AmountCents)
	candidates := Fields{
		{Key: "merchant_id", Value: c.cfg.MerchantID},
		{Key: "merchant_key", Value: c.cfg.MerchantKey},
		{Key: "return_url", Value: c.cfg.ReturnURL},
		{Key: "cancel_url", Value: c.cfg.CancelURL},
		{Key: "notify_url", Value: c.cfg.NotifyURL},
		{Key: "name_first", Value: req.FirstName},
		{Key: "email_address", Value: req.BuyerEmail},
		{Key: "m_payment_id", Value: req.PaymentID},
		{Key: "amount", Value: amount},
		{Key: "item_name", Value: req.ItemName},
	}
	fields := make(Fields, 0, len(candidates)+1)
	for _, f := range candidates {
		if strings.TrimSpace(f.Value) != "" {
			fields = append(fields, f)
		}
	}
	signature := Sign(fields, c.cfg.Passphrase)
	fields = append(fields, Field{Key: signatureField, Value: signature})

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Key+"="+encode(strings.TrimSpace(f.Value)))
	}
	base := c.cfg.ProcessURL
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	if _, err := url.Parse(base); err != nil {
		return PaymentHandle{}, err
	}
	return PaymentHandle{
		RedirectURL: base + sep + strings.Join(parts, "&"),
		PaymentID:   req.PaymentID,
		Amount:      amount,
		Signature:   signature,
	}, nil
}
