package telegram

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_attribution_bot/internal/payments"
)

// starsGateway adapts the Bot API to payments.Gateway. Stars invoices carry
// no provider token, a single literal-count price, and no tip options.
type starsGateway struct {
	api botAPI
}

func (g starsGateway) CreateInvoiceLink(ctx context.Context, req payments.InvoiceRequest) (string, error) {
	label := req.ProductName
	if label == "" {
		label = "Stars"
	}

	return g.api.CreateInvoiceLink(ctx, &bot.CreateInvoiceLinkParams{
		Title:       req.ProductName,
		Description: req.Description,
		Payload:     req.Payload,
		Currency:    req.Currency,
		Prices: []models.LabeledPrice{
			{Label: label, Amount: req.Amount},
		},
		PhotoURL: req.PhotoURL,
	})
}

func (g starsGateway) RefundStarPayment(ctx context.Context, userID int64, chargeID string) error {
	ok, err := g.api.RefundStarPayment(ctx, &bot.RefundStarPaymentParams{
		UserID:                  userID,
		TelegramPaymentChargeID: chargeID,
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("refund was not confirmed by the gateway")
	}

	return nil
}
