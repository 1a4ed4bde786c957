// Package payments holds the payment ledger event model and the Telegram
// Stars invoice flow.
package payments

import (
	"fmt"
	"strings"
	"time"

	"tg_attribution_bot/internal/attribution"
)

// ValidationKind classifies a rejected payment event.
type ValidationKind string

const (
	KindMissingField      ValidationKind = "missing_field"
	KindInvalidTimestamp  ValidationKind = "invalid_timestamp"
	KindNegativeDuration  ValidationKind = "negative_duration"
	KindInvalidCurrency   ValidationKind = "invalid_currency"
	KindNonPositiveAmount ValidationKind = "non_positive_amount"
)

// ValidationError describes why a payment event or invoice request was
// rejected. It is resolved at the boundary and mapped to HTTP 400.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// EventInput carries the raw fields of a payment confirmation before
// validation. Timestamps are ISO-8601 strings as received on the wire.
type EventInput struct {
	UserID           int64
	Username         string
	FirstName        string
	LastName         string
	PaymentID        string
	Amount           float64
	Currency         string
	RegistrationTime string
	PaymentTime      string
	UTM              attribution.Token
}

// Event is a validated payment confirmation with derived fields. It is
// immutable after construction and forwarded to the channel log.
type Event struct {
	UserID           int64
	Username         string
	FirstName        string
	LastName         string
	PaymentID        string
	Amount           float64
	Currency         string
	RegistrationTime time.Time
	PaymentTime      time.Time
	TimeToPayment    time.Duration
	UTM              attribution.Token
}

// ValidateAndDerive checks the raw input and computes the derived payment
// fields. All required fields must be present, both timestamps must parse as
// RFC 3339 instants, and the payment must not precede the registration.
func ValidateAndDerive(input EventInput) (Event, error) {
	missing := make([]string, 0)

	if input.UserID == 0 {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(input.PaymentID) == "" {
		missing = append(missing, "paymentId")
	}
	if input.Amount == 0 {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(input.Currency) == "" {
		missing = append(missing, "currency")
	}
	if strings.TrimSpace(input.RegistrationTime) == "" {
		missing = append(missing, "registrationTime")
	}
	if strings.TrimSpace(input.PaymentTime) == "" {
		missing = append(missing, "paymentTime")
	}

	if len(missing) > 0 {
		return Event{}, &ValidationError{
			Kind:    KindMissingField,
			Message: "missing required fields: " + strings.Join(missing, ", "),
		}
	}

	registrationTime, err := time.Parse(time.RFC3339, strings.TrimSpace(input.RegistrationTime))
	if err != nil {
		return Event{}, &ValidationError{
			Kind:    KindInvalidTimestamp,
			Message: "invalid registrationTime: use ISO 8601 format",
		}
	}

	paymentTime, err := time.Parse(time.RFC3339, strings.TrimSpace(input.PaymentTime))
	if err != nil {
		return Event{}, &ValidationError{
			Kind:    KindInvalidTimestamp,
			Message: "invalid paymentTime: use ISO 8601 format",
		}
	}

	if paymentTime.Before(registrationTime) {
		return Event{}, &ValidationError{
			Kind:    KindNegativeDuration,
			Message: "payment time cannot be before registration time",
		}
	}

	return Event{
		UserID:           input.UserID,
		Username:         input.Username,
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		PaymentID:        strings.TrimSpace(input.PaymentID),
		Amount:           input.Amount,
		Currency:         strings.TrimSpace(input.Currency),
		RegistrationTime: registrationTime,
		PaymentTime:      paymentTime,
		TimeToPayment:    paymentTime.Sub(registrationTime),
		UTM:              input.UTM,
	}, nil
}

// HumanizeDuration renders a millisecond duration using the two coarsest
// applicable units among days, hours, minutes, and seconds: 90 minutes is
// "1h 30m", anything under a minute is seconds only.
func HumanizeDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
