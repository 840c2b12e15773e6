package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is assumed when a processor omits the currency code.
const DefaultCurrency = "INR"

// Payment is one immutable charge recorded against a subscription.
type Payment struct {
	ID                uuid.UUID
	SubscriptionID    uuid.UUID
	ExternalPaymentID string
	Amount            decimal.Decimal
	Currency          string
	Status            string
	Method            string
	PaidAt            time.Time
	Metadata          map[string]any
}

// AmountFromMinor converts an amount in the currency's minor unit (paise,
// cents) to a decimal in major units, honouring the currency's scale.
func AmountFromMinor(minor int64, code string) (decimal.Decimal, string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: currency %q", ErrInvalidEvent, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return decimal.New(minor, -int32(scale)), unit.String(), nil
}
