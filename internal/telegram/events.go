package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// Event is one classified inbound update. Each variant carries only the
// fields its handler needs; dispatch is an exhaustive type switch.
type Event interface {
	isEvent()
}

// StartEvent is a /start command, optionally carrying a deep-link payload.
type StartEvent struct {
	UserID       int64
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	Payload      string
}

// TextMessageEvent is any other text message, including commands.
type TextMessageEvent struct {
	UserID int64
	ChatID int64
	Text   string
}

// PreCheckoutEvent is a pre-checkout query awaiting a single-shot answer.
type PreCheckoutEvent struct {
	QueryID        string
	UserID         int64
	Currency       string
	TotalAmount    int
	InvoicePayload string
}

// SuccessfulPaymentEvent is a confirmed payment delivered by the platform.
type SuccessfulPaymentEvent struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
	Payment   models.SuccessfulPayment
}

// UnknownEvent is anything the bot does not handle.
type UnknownEvent struct {
	UpdateType string
}

func (StartEvent) isEvent()             {}
func (TextMessageEvent) isEvent()       {}
func (PreCheckoutEvent) isEvent()       {}
func (SuccessfulPaymentEvent) isEvent() {}
func (UnknownEvent) isEvent()           {}

// classifyUpdate maps a raw update onto the tagged event model.
func classifyUpdate(update *models.Update) Event {
	switch {
	case update == nil:
		return UnknownEvent{UpdateType: "nil"}

	case update.PreCheckoutQuery != nil:
		query := update.PreCheckoutQuery
		return PreCheckoutEvent{
			QueryID:        query.ID,
			UserID:         query.From.ID,
			Currency:       query.Currency,
			TotalAmount:    query.TotalAmount,
			InvoicePayload: query.InvoicePayload,
		}

	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		msg := update.Message
		ev := SuccessfulPaymentEvent{
			ChatID:  msg.Chat.ID,
			Payment: *msg.SuccessfulPayment,
		}
		if msg.From != nil {
			ev.UserID = msg.From.ID
			ev.Username = msg.From.Username
			ev.FirstName = msg.From.FirstName
			ev.LastName = msg.From.LastName
		}
		return ev

	case update.Message != nil && isStartCommand(update.Message.Text):
		msg := update.Message
		ev := StartEvent{
			ChatID:  msg.Chat.ID,
			Payload: startPayload(msg.Text),
		}
		if msg.From != nil {
			ev.UserID = msg.From.ID
			ev.Username = msg.From.Username
			ev.FirstName = msg.From.FirstName
			ev.LastName = msg.From.LastName
			ev.LanguageCode = msg.From.LanguageCode
		}
		return ev

	case update.Message != nil:
		msg := update.Message
		ev := TextMessageEvent{
			ChatID: msg.Chat.ID,
			Text:   strings.TrimSpace(msg.Text),
		}
		if msg.From != nil {
			ev.UserID = msg.From.ID
		}
		return ev

	default:
		return UnknownEvent{UpdateType: "unsupported"}
	}
}

func isStartCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "/start" || strings.HasPrefix(trimmed, "/start ")
}

// startPayload extracts the deep-link payload following the /start command.
func startPayload(text string) string {
	trimmed := strings.TrimSpace(text)
	_, payload, found := strings.Cut(trimmed, " ")
	if !found {
		return ""
	}

	return strings.TrimSpace(payload)
}
