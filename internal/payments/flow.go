package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_attribution_bot/internal/attribution"
	"tg_attribution_bot/internal/logging"
)

// StarsCurrency is the Telegram Stars currency code. Stars amounts are
// literal counts: they are never scaled by 100 like minor-unit currencies.
const StarsCurrency = "XTR"

// Gateway is the subset of the payment provider the flow depends on.
// Implemented by the telegram client over the Bot API.
type Gateway interface {
	CreateInvoiceLink(ctx context.Context, req InvoiceRequest) (string, error)
	RefundStarPayment(ctx context.Context, userID int64, chargeID string) error
}

// InvoiceRequest describes one Stars invoice to create.
type InvoiceRequest struct {
	UserID      int64
	ProductName string
	Description string
	Amount      int    // Stars count, must be positive
	Currency    string // optional; must equal StarsCurrency when set
	Payload     string // opaque correlation payload, generated when empty
	PhotoURL    string
}

// Decision is the answer to a pre-checkout query. Exactly one Decision must
// be produced per query.
type Decision struct {
	OK     bool
	Reason string
}

// GatewayError reports a terminal provider-side failure. Requests are never
// retried automatically.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// SuccessfulPayment carries the provider's payment confirmation as delivered
// by the successful_payment update.
type SuccessfulPayment struct {
	UserID         int64
	Username       string
	FirstName      string
	LastName       string
	Currency       string
	TotalAmount    int
	InvoicePayload string
	ChargeID       string
}

// payloadMeta is the structured form of the invoice correlation payload.
// Parsing is best-effort; any of these may be absent.
type payloadMeta struct {
	UTM              map[string]string `json:"utm,omitempty"`
	PromoID          string            `json:"promoId,omitempty"`
	RegistrationTime string            `json:"registrationTime,omitempty"`
}

// Flow drives the Stars payment protocol: invoice creation, pre-checkout
// decisions, success handling, and refunds.
type Flow struct {
	gateway Gateway
	logger  *logrus.Entry
	now     func() time.Time
}

// NewFlow constructs a Flow over the provided gateway.
func NewFlow(gateway Gateway, logger *logrus.Entry) *Flow {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Flow{
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateInvoice validates the request and asks the gateway for an invoice
// link. Invalid requests fail fast before any network call. A missing
// correlation payload is replaced with a locally unique payment id derived
// from the user id and the current time.
func (f *Flow) CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error) {
	if f == nil || f.gateway == nil {
		return "", errors.New("stars flow is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}

	if req.Amount < 1 {
		return "", &ValidationError{
			Kind:    KindNonPositiveAmount,
			Message: "amount must be a positive Stars count",
		}
	}

	if req.Currency != "" && req.Currency != StarsCurrency {
		return "", &ValidationError{
			Kind:    KindInvalidCurrency,
			Message: fmt.Sprintf("currency must be %s for Stars invoices", StarsCurrency),
		}
	}
	req.Currency = StarsCurrency

	if strings.TrimSpace(req.Payload) == "" {
		req.Payload = LocalPaymentID(req.UserID, f.now())
	}

	link, err := f.gateway.CreateInvoiceLink(ctx, req)
	if err != nil {
		f.logger.WithFields(logging.Fields{
			"event":   "invoice_create_failed",
			"user_id": req.UserID,
			"amount":  req.Amount,
		}).WithError(err).Error("invoice link creation rejected by gateway")

		return "", &GatewayError{Op: "create invoice link", Err: err}
	}

	f.logger.WithFields(logging.Fields{
		"event":   "invoice_created",
		"user_id": req.UserID,
		"amount":  req.Amount,
		"payload": req.Payload,
	}).Info("invoice link created")

	return link, nil
}

// DecidePreCheckout approves or rejects a pre-checkout query from its
// currency and total amount. It is pure and synchronous: the caller must
// deliver the decision exactly once within the platform's response window.
func (f *Flow) DecidePreCheckout(currency string, totalAmount int) Decision {
	if currency != StarsCurrency {
		return Decision{Reason: "Only Telegram Stars payments are accepted."}
	}

	if totalAmount < 1 {
		return Decision{Reason: "Invalid payment amount."}
	}

	return Decision{OK: true}
}

// OnSuccessfulPayment turns a payment confirmation into a ledger Event. The
// correlation payload is parsed best-effort: a malformed payload only drops
// the attribution metadata. When the payload carries no registration time,
// both timestamps are set to now and time-to-payment reads as zero; the
// true registration time is simply unknown in that case.
func (f *Flow) OnSuccessfulPayment(payment SuccessfulPayment) Event {
	now := time.Now()
	if f != nil && f.now != nil {
		now = f.now()
	}

	meta := f.parsePayload(payment)

	registrationTime := now
	timeToPayment := time.Duration(0)
	if meta.RegistrationTime != "" {
		if parsed, err := time.Parse(time.RFC3339, meta.RegistrationTime); err == nil && !parsed.After(now) {
			registrationTime = parsed
			timeToPayment = now.Sub(parsed)
		}
	}

	token := attribution.Token{
		Source:   meta.UTM["utm_source"],
		Medium:   meta.UTM["utm_medium"],
		Campaign: meta.UTM["utm_campaign"],
		Term:     meta.UTM["utm_term"],
		Content:  meta.UTM["utm_content"],
		PromoID:  meta.PromoID,
	}

	return Event{
		UserID:           payment.UserID,
		Username:         payment.Username,
		FirstName:        payment.FirstName,
		LastName:         payment.LastName,
		PaymentID:        payment.ChargeID,
		Amount:           float64(payment.TotalAmount),
		Currency:         payment.Currency,
		RegistrationTime: registrationTime,
		PaymentTime:      now,
		TimeToPayment:    timeToPayment,
		UTM:              token,
	}
}

// Refund issues a Stars refund keyed by the provider charge id. The outcome
// is reported as a boolean: gateway failures are logged, not raised, and no
// refund record is kept locally.
func (f *Flow) Refund(ctx context.Context, userID int64, chargeID, reason string) bool {
	if f == nil || f.gateway == nil || ctx == nil {
		return false
	}
	if strings.TrimSpace(chargeID) == "" {
		return false
	}

	if err := f.gateway.RefundStarPayment(ctx, userID, chargeID); err != nil {
		f.logger.WithFields(logging.Fields{
			"event":      "refund_failed",
			"user_id":    userID,
			"payment_id": chargeID,
			"reason":     reason,
		}).WithError(err).Error("refund rejected by gateway")

		return false
	}

	f.logger.WithFields(logging.Fields{
		"event":      "refund_issued",
		"user_id":    userID,
		"payment_id": chargeID,
		"reason":     reason,
	}).Info("refund issued")

	return true
}

func (f *Flow) parsePayload(payment SuccessfulPayment) payloadMeta {
	var meta payloadMeta

	raw := strings.TrimSpace(payment.InvoicePayload)
	if raw == "" || !strings.HasPrefix(raw, "{") {
		return meta
	}

	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		logger := logging.Logger()
		if f != nil && f.logger != nil {
			logger = f.logger
		}

		logger.WithFields(logging.Fields{
			"event":   "payment_payload_unparsed",
			"user_id": payment.UserID,
		}).WithError(err).Warn("invoice payload is not structured metadata")

		return payloadMeta{}
	}

	return meta
}

// LocalPaymentID derives a locally unique payment identifier from the user
// id and an instant, used when the caller supplied no correlation payload.
func LocalPaymentID(userID int64, at time.Time) string {
	return fmt.Sprintf("tg_%d_%d", userID, at.UnixMilli())
}
