// Package telegram hosts the Telegram client, update classification, and
// handlers for the bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_attribution_bot/internal/channellog"
	"tg_attribution_bot/internal/config"
	"tg_attribution_bot/internal/leads"
	"tg_attribution_bot/internal/logging"
	"tg_attribution_bot/internal/payments"
)

const backgroundTimeout = 10 * time.Second

// botAPI is the subset of bot.Bot behavior the client relies on, kept narrow
// for stubbing in tests.
type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerPreCheckoutQuery(ctx context.Context, params *bot.AnswerPreCheckoutQueryParams) (bool, error)
	CreateInvoiceLink(ctx context.Context, params *bot.CreateInvoiceLinkParams) (string, error)
	RefundStarPayment(ctx context.Context, params *bot.RefundStarPaymentParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"pre_checkout_query",
	}

	// createBot is overridable for tests.
	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// leadSender submits bot-start leads to the backend.
type leadSender interface {
	SendLead(ctx context.Context, lead leads.Lead) error
}

// activityLogger mirrors events into the admin channel.
type activityLogger interface {
	LogUserStart(ctx context.Context, start channellog.StartLog) error
	LogPayment(ctx context.Context, event payments.Event) error
	LogRefund(ctx context.Context, userID int64, chargeID string, ok bool) error
}

// paymentFlow drives the Stars protocol steps the handlers need.
type paymentFlow interface {
	DecidePreCheckout(currency string, totalAmount int) payments.Decision
	OnSuccessfulPayment(payment payments.SuccessfulPayment) payments.Event
	Refund(ctx context.Context, userID int64, chargeID, reason string) bool
}

// Client wraps the Telegram bot instance and its collaborators.
type Client struct {
	bot    botAPI
	logger *logrus.Entry

	botUsername     string
	botOwnerID      int64
	miniAppURL      string
	startappEnabled bool

	leads   leadSender
	channel activityLogger
	flow    paymentFlow

	// background runs a fire-and-forget task with its own error boundary.
	background func(task func(ctx context.Context))
}

// Option customizes a Client during construction.
type Option func(*Client)

// WithLeadSender wires the backend lead client.
func WithLeadSender(sender leadSender) Option {
	return func(c *Client) { c.leads = sender }
}

// NewClient initializes the Telegram bot with long polling and the update
// dispatcher.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{
		logger:          logger,
		botUsername:     cfg.BotUsername,
		botOwnerID:      cfg.BotOwnerID,
		miniAppURL:      cfg.MiniAppURL,
		startappEnabled: cfg.MiniAppStartappEnable,
	}
	client.background = client.runDetached

	for _, opt := range opts {
		opt(client)
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.dispatch),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot
	return client, nil
}

// AttachFlow wires the Stars payment flow. The flow itself is built over
// this client's Gateway, so it is attached after construction.
func (c *Client) AttachFlow(flow paymentFlow) {
	c.flow = flow
}

// AttachChannel wires the admin channel logger. Like the flow, the channel
// logger uses this client as its message sink and is attached after
// construction.
func (c *Client) AttachChannel(channel activityLogger) {
	c.channel = channel
}

// Gateway returns the payments.Gateway implementation backed by this bot.
func (c *Client) Gateway() payments.Gateway {
	return starsGateway{api: c.bot}
}

// Start begins receiving updates via long polling until the context is
// canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// SendChannelMessage posts an HTML message to a chat. It backs the channel
// logger's sink.
func (c *Client) SendChannelMessage(ctx context.Context, chatID int64, text string, silent bool) error {
	if c == nil || c.bot == nil {
		return errors.New("telegram client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:              chatID,
		Text:                text,
		ParseMode:           models.ParseModeHTML,
		DisableNotification: silent,
		LinkPreviewOptions:  &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		return fmt.Errorf("send channel message: %w", err)
	}

	return nil
}

func (c *Client) reply(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_send_failed",
			"chat_id": chatID,
		}).WithError(err).Error("failed to send message")
	}
}

func (c *Client) runDetached(task func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		task(ctx)
	}()
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
