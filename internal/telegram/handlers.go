package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_attribution_bot/internal/attribution"
	"tg_attribution_bot/internal/channellog"
	"tg_attribution_bot/internal/leads"
	"tg_attribution_bot/internal/logging"
	"tg_attribution_bot/internal/payments"
)

const (
	welcomeMessage = "👋 <b>Welcome!</b>\n\n" +
		"Open the app below to get started. Your first lesson is free!"

	helpMessage = "ℹ️ <b>Help</b>\n\n" +
		"<b>Commands:</b>\n" +
		"• /start — open the app\n" +
		"• /help — show this message\n\n" +
		"Tap the button below to open the app:"

	fallbackMessage = "Use /start to begin or /help for assistance."

	paymentThanksMessage = "✅ <b>Payment received — thank you!</b>\n\n" +
		"Your access is now active."
)

// dispatch classifies the raw update and routes it to the matching handler.
func (c *Client) dispatch(ctx context.Context, _ *bot.Bot, update *models.Update) {
	switch ev := classifyUpdate(update).(type) {
	case StartEvent:
		c.handleStart(ctx, ev)
	case TextMessageEvent:
		c.handleText(ctx, ev)
	case PreCheckoutEvent:
		c.handlePreCheckout(ctx, ev)
	case SuccessfulPaymentEvent:
		c.handleSuccessfulPayment(ctx, ev)
	case UnknownEvent:
		c.logger.WithFields(logging.Fields{
			"event":       "telegram_update_ignored",
			"update_type": ev.UpdateType,
		}).Debug("ignoring unsupported update")
	}
}

// handleStart decodes the attribution payload, fires the background side
// effects, and always answers with the welcome message. Side-effect failures
// never reach the user.
func (c *Client) handleStart(ctx context.Context, ev StartEvent) {
	started := time.Now()
	token := attribution.Decode(ev.Payload)

	c.logger.WithFields(logging.Fields{
		"event":   "bot_start",
		"user_id": ev.UserID,
		"payload": ev.Payload,
	}).Info("processing /start")

	if c.leads != nil {
		lead := leads.Lead{UserID: ev.UserID, UTM: token}
		c.background(func(ctx context.Context) {
			_ = c.leads.SendLead(ctx, lead)
		})
	}

	if c.channel != nil {
		start := channellog.StartLog{
			UserID:       ev.UserID,
			Username:     ev.Username,
			FirstName:    ev.FirstName,
			LastName:     ev.LastName,
			LanguageCode: ev.LanguageCode,
			UTM:          token,
			Timestamp:    time.Now(),
		}
		c.background(func(ctx context.Context) {
			_ = c.channel.LogUserStart(ctx, start)
		})
	}

	c.reply(ctx, ev.ChatID, welcomeMessage, c.welcomeKeyboard(token))

	c.logger.WithFields(logging.Fields{
		"event":         "bot_start_done",
		"user_id":       ev.UserID,
		"has_utm":       token.HasCampaignData(),
		"processing_ms": time.Since(started).Milliseconds(),
	}).Info("processed /start")
}

func (c *Client) handleText(ctx context.Context, ev TextMessageEvent) {
	switch {
	case ev.Text == "/help":
		c.reply(ctx, ev.ChatID, helpMessage, c.webAppKeyboard())

	case strings.HasPrefix(ev.Text, "/refund"):
		c.handleRefundCommand(ctx, ev)

	default:
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_message",
			"user_id": ev.UserID,
			"text":    ev.Text,
		}).Info("unhandled message")

		c.reply(ctx, ev.ChatID, fallbackMessage, c.webAppKeyboard())
	}
}

// handleRefundCommand issues a Stars refund: /refund <charge_id> [reason].
// Owner only.
func (c *Client) handleRefundCommand(ctx context.Context, ev TextMessageEvent) {
	if ev.UserID != c.botOwnerID {
		c.logger.WithFields(logging.Fields{
			"event":   "refund_denied",
			"user_id": ev.UserID,
		}).Warn("refund command from non-owner")

		c.reply(ctx, ev.ChatID, "This command is restricted.", nil)
		return
	}

	fields := strings.Fields(ev.Text)
	if len(fields) < 2 {
		c.reply(ctx, ev.ChatID, "Usage: /refund &lt;user_id:charge_id&gt; [reason]", nil)
		return
	}

	targetUserID := ev.UserID
	chargeID := fields[1]
	if userPart, chargePart, found := strings.Cut(fields[1], ":"); found {
		if parsed, err := strconv.ParseInt(userPart, 10, 64); err == nil {
			targetUserID = parsed
			chargeID = chargePart
		}
	}

	reason := strings.Join(fields[2:], " ")

	if c.flow == nil {
		c.reply(ctx, ev.ChatID, "Payments are not configured.", nil)
		return
	}

	ok := c.flow.Refund(ctx, targetUserID, chargeID, reason)
	if c.channel != nil {
		c.background(func(ctx context.Context) {
			_ = c.channel.LogRefund(ctx, targetUserID, chargeID, ok)
		})
	}

	if ok {
		c.reply(ctx, ev.ChatID, "Refund issued for <code>"+chargeID+"</code>.", nil)
	} else {
		c.reply(ctx, ev.ChatID, "Refund failed for <code>"+chargeID+"</code>; see logs.", nil)
	}
}

// handlePreCheckout answers the pre-checkout query exactly once. Any
// internal failure rejects the payment rather than leaving the query to
// expire unanswered.
func (c *Client) handlePreCheckout(ctx context.Context, ev PreCheckoutEvent) {
	decision := c.decide(ev)

	if _, err := c.bot.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: ev.QueryID,
		OK:                 decision.OK,
		ErrorMessage:       decision.Reason,
	}); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "precheckout_answer_failed",
			"user_id": ev.UserID,
		}).WithError(err).Error("failed to answer pre-checkout query")
		return
	}

	c.logger.WithFields(logging.Fields{
		"event":    "precheckout_answered",
		"user_id":  ev.UserID,
		"currency": ev.Currency,
		"amount":   ev.TotalAmount,
		"approved": decision.OK,
	}).Info("pre-checkout query answered")
}

// decide computes the pre-checkout decision, failing closed on any internal
// error.
func (c *Client) decide(ev PreCheckoutEvent) (decision payments.Decision) {
	decision = payments.Decision{Reason: "A technical error occurred, please try again later."}

	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logging.Fields{
				"event":   "precheckout_panic",
				"user_id": ev.UserID,
				"panic":   r,
			}).Error("pre-checkout decision panicked, rejecting")

			decision = payments.Decision{Reason: "A technical error occurred, please try again later."}
		}
	}()

	if c.flow == nil {
		return decision
	}

	return c.flow.DecidePreCheckout(ev.Currency, ev.TotalAmount)
}

// handleSuccessfulPayment confirms to the user and mirrors the event into
// the channel. The confirmation is sent regardless of logging outcome.
func (c *Client) handleSuccessfulPayment(ctx context.Context, ev SuccessfulPaymentEvent) {
	c.logger.WithFields(logging.Fields{
		"event":    "payment_received",
		"user_id":  ev.UserID,
		"amount":   ev.Payment.TotalAmount,
		"currency": ev.Payment.Currency,
	}).Info("successful payment received")

	if c.flow != nil && c.channel != nil {
		event := c.flow.OnSuccessfulPayment(payments.SuccessfulPayment{
			UserID:         ev.UserID,
			Username:       ev.Username,
			FirstName:      ev.FirstName,
			LastName:       ev.LastName,
			Currency:       ev.Payment.Currency,
			TotalAmount:    ev.Payment.TotalAmount,
			InvoicePayload: ev.Payment.InvoicePayload,
			ChargeID:       ev.Payment.TelegramPaymentChargeID,
		})

		c.background(func(ctx context.Context) {
			_ = c.channel.LogPayment(ctx, event)
		})
	}

	c.reply(ctx, ev.ChatID, paymentThanksMessage, nil)
}
