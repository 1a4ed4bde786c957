// Package channellog mirrors user activity and payments into an admin
// Telegram channel. Every send is best-effort: failures are logged and
// swallowed so the user-facing flow is never blocked.
package channellog

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_attribution_bot/internal/attribution"
	"tg_attribution_bot/internal/firsttouch"
	"tg_attribution_bot/internal/logging"
	"tg_attribution_bot/internal/payments"
)

const timeLayout = "2006-01-02 15:04 MST"

// messageSender is the subset of the telegram client needed for channel
// posts.
type messageSender interface {
	SendChannelMessage(ctx context.Context, chatID int64, text string, silent bool) error
}

// StartLog describes one bot-start event for the channel feed.
type StartLog struct {
	UserID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	UTM          attribution.Token
	Timestamp    time.Time
}

// CreationLog describes a payment that was initiated but not yet confirmed.
type CreationLog struct {
	UserID     int64
	Username   string
	FirstName  string
	LastName   string
	PaymentID  string
	Amount     float64
	Currency   string
	TariffName string
	UTM        attribution.Token
	Timestamp  time.Time
}

// Logger posts formatted events to the admin channel.
type Logger struct {
	sender    messageSender
	channelID int64
	enabled   bool
	tracker   *firsttouch.Tracker
	logger    *logrus.Entry
}

// NewLogger constructs a channel logger. When channelID is zero or enabled
// is false, every log call becomes a no-op.
func NewLogger(sender messageSender, channelID int64, enabled bool, tracker *firsttouch.Tracker, logger *logrus.Entry) *Logger {
	if logger == nil {
		logger = logging.Logger()
	}

	active := enabled && channelID != 0 && sender != nil

	logger.WithFields(logging.Fields{
		"event":   "channel_logger_init",
		"enabled": active,
	}).Info("channel logger initialized")

	return &Logger{
		sender:    sender,
		channelID: channelID,
		enabled:   active,
		tracker:   tracker,
		logger:    logger,
	}
}

// Enabled reports whether channel logging is active.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// LogUserStart classifies the start as first-time or repeat and posts it.
// The first-touch classification happens here even if the send fails, so a
// flaky channel cannot double-count users.
func (l *Logger) LogUserStart(ctx context.Context, start StartLog) error {
	if !l.Enabled() {
		return nil
	}

	firstTime := false
	if l.tracker != nil {
		firstTime = l.tracker.Observe(start.UserID)
	}

	return l.send(ctx, l.formatUserStart(start, firstTime), "user_start")
}

// LogPayment posts a confirmed payment with its derived time-to-payment.
func (l *Logger) LogPayment(ctx context.Context, event payments.Event) error {
	if !l.Enabled() {
		return nil
	}

	return l.send(ctx, l.formatPayment(event), "payment")
}

// LogPaymentCreation posts a payment initiation (tariff selected, invoice
// issued); no time derivation applies here.
func (l *Logger) LogPaymentCreation(ctx context.Context, creation CreationLog) error {
	if !l.Enabled() {
		return nil
	}

	return l.send(ctx, l.formatPaymentCreation(creation), "payment_creation")
}

// LogRefund posts an administrative refund outcome.
func (l *Logger) LogRefund(ctx context.Context, userID int64, chargeID string, ok bool) error {
	if !l.Enabled() {
		return nil
	}

	status := "✅ issued"
	if !ok {
		status = "❌ rejected by gateway"
	}

	text := fmt.Sprintf("↩️ <b>Refund %s</b>\n\n🆔 <b>User:</b> <code>%d</code>\n💳 <b>Charge:</b> <code>%s</code>",
		status, userID, html.EscapeString(chargeID))

	return l.send(ctx, text, "refund")
}

// Test sends a silent connectivity probe to the channel.
func (l *Logger) Test(ctx context.Context) bool {
	if !l.Enabled() || ctx == nil {
		return false
	}

	if err := l.sender.SendChannelMessage(ctx, l.channelID, "🧪 Channel log connectivity test", true); err != nil {
		l.logger.WithField("event", "channel_test_failed").WithError(err).Warn("channel test failed")
		return false
	}

	return true
}

func (l *Logger) send(ctx context.Context, text, kind string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := l.sender.SendChannelMessage(ctx, l.channelID, text, false); err != nil {
		l.logger.WithFields(logging.Fields{
			"event": "channel_log_failed",
			"kind":  kind,
		}).WithError(err).Error("failed to post to log channel")

		return fmt.Errorf("post %s to channel: %w", kind, err)
	}

	return nil
}

func (l *Logger) formatUserStart(start StartLog, firstTime bool) string {
	status := "🔄 <b>Returning user</b>"
	if firstTime {
		status = "🆕 <b>New user</b>"
	}

	return fmt.Sprintf(`%s

👤 <b>User:</b> %s
🆔 <b>ID:</b> <code>%d</code>
📊 <b>UTM:</b> %s%s
🕒 <b>Time:</b> %s`,
		status,
		displayName(start.FirstName, start.LastName, start.Username),
		start.UserID,
		utmSummary(start.UTM),
		promoLine(start.UTM.PromoID),
		start.Timestamp.UTC().Format(timeLayout),
	)
}

func (l *Logger) formatPayment(event payments.Event) string {
	return fmt.Sprintf(`💰 <b>New payment</b>

👤 <b>User:</b> %s
🆔 <b>ID:</b> <code>%d</code>
💳 <b>Payment:</b> %s %s
🧾 <b>Payment ID:</b> <code>%s</code>
⏱ <b>Time to payment:</b> %s
📊 <b>UTM:</b> %s%s

📅 <b>Registered:</b> %s
💳 <b>Paid:</b> %s`,
		displayName(event.FirstName, event.LastName, event.Username),
		event.UserID,
		formatAmount(event.Amount),
		strings.ToUpper(event.Currency),
		html.EscapeString(event.PaymentID),
		payments.HumanizeDuration(event.TimeToPayment.Milliseconds()),
		utmSummary(event.UTM),
		promoLine(event.UTM.PromoID),
		event.RegistrationTime.UTC().Format(timeLayout),
		event.PaymentTime.UTC().Format(timeLayout),
	)
}

func (l *Logger) formatPaymentCreation(creation CreationLog) string {
	tariff := ""
	if creation.TariffName != "" {
		tariff = "\n📦 <b>Tariff:</b> " + html.EscapeString(creation.TariffName)
	}

	return fmt.Sprintf(`🛒 <b>Payment created</b>

👤 <b>User:</b> %s
🆔 <b>ID:</b> <code>%d</code>
💳 <b>Amount:</b> %s %s%s
🧾 <b>Payment ID:</b> <code>%s</code>
📊 <b>UTM:</b> %s%s
🕒 <b>Time:</b> %s`,
		displayName(creation.FirstName, creation.LastName, creation.Username),
		creation.UserID,
		formatAmount(creation.Amount),
		strings.ToUpper(creation.Currency),
		tariff,
		html.EscapeString(creation.PaymentID),
		utmSummary(creation.UTM),
		promoLine(creation.UTM.PromoID),
		creation.Timestamp.UTC().Format(timeLayout),
	)
}

func displayName(firstName, lastName, username string) string {
	parts := make([]string, 0, 2)
	if firstName != "" {
		parts = append(parts, firstName)
	}
	if lastName != "" {
		parts = append(parts, lastName)
	}

	name := "unnamed"
	if len(parts) > 0 {
		name = html.EscapeString(strings.Join(parts, " "))
	}

	handle := "no username"
	if username != "" {
		handle = "@" + html.EscapeString(username)
	}

	return name + " (" + handle + ")"
}

func utmSummary(token attribution.Token) string {
	parts := make([]string, 0, 5)

	if token.Source != "" {
		parts = append(parts, "source: "+html.EscapeString(token.Source))
	}
	if token.Campaign != "" {
		parts = append(parts, "campaign: "+html.EscapeString(token.Campaign))
	}
	if token.Medium != "" {
		parts = append(parts, "medium: "+html.EscapeString(token.Medium))
	}
	if token.Term != "" {
		parts = append(parts, "term: "+html.EscapeString(token.Term))
	}
	if token.Content != "" {
		parts = append(parts, "content: "+html.EscapeString(token.Content))
	}

	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, ", ")
}

func promoLine(promoID string) string {
	if promoID == "" {
		return ""
	}

	return "\n🎫 <b>Promo:</b> " + html.EscapeString(promoID)
}

func formatAmount(amount float64) string {
	if amount == float64(int64(amount)) {
		return strconv.FormatInt(int64(amount), 10)
	}

	return strconv.FormatFloat(amount, 'f', 2, 64)
}
