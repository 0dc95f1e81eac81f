package pagarme

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"poll-app/internal/domain/billing"
)

// FlexibleID accepts ids sent as JSON numbers or strings.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

type Transaction struct {
	ID             FlexibleID             `json:"id"`
	Status         string                 `json:"status"`
	Amount         int64                  `json:"amount"`
	PaidAmount     int64                  `json:"paid_amount,omitempty"`
	PaymentMethod  string                 `json:"payment_method,omitempty"`
	RefuseReason   string                 `json:"refuse_reason,omitempty"`
	StatusReason   string                 `json:"status_reason,omitempty"`
	SubscriptionID FlexibleID             `json:"subscription_id,omitempty"`
	BoletoURL      string                 `json:"boleto_url,omitempty"`
	BoletoBarcode  string                 `json:"boleto_barcode,omitempty"`
	BoletoDueDate  string                 `json:"boleto_expiration_date,omitempty"`
	PixQRCode      string                 `json:"pix_qr_code,omitempty"`
	DateCreated    string                 `json:"date_created,omitempty"`
	DateUpdated    string                 `json:"date_updated,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// FailureReason is empty unless the transaction was declined.
func (t *Transaction) FailureReason() string {
	if MapPaymentStatus(t.Status) != billing.PaymentFailed {
		return ""
	}
	for _, r := range []string{t.RefuseReason, t.StatusReason} {
		if r != "" {
			return r
		}
	}
	return strings.ToLower(strings.TrimSpace(t.Status))
}

// DueDate is the boleto expiry when present, else the creation date.
func (t *Transaction) DueDate() time.Time {
	for _, s := range []string{t.BoletoDueDate, t.DateCreated} {
		if ts, ok := parseTime(s); ok {
			return ts
		}
	}
	return time.Time{}
}

// PaidAt returns the last update of a paid transaction.
func (t *Transaction) PaidAt() *time.Time {
	if MapPaymentStatus(t.Status) != billing.PaymentPaid {
		return nil
	}
	if ts, ok := parseTime(t.DateUpdated); ok {
		return &ts
	}
	return nil
}

// PaidValue is what the payer settled, falling back to the charged amount.
func (t *Transaction) PaidValue() int64 {
	if t.PaidAmount > 0 {
		return t.PaidAmount
	}
	return t.Amount
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}
