package telegram

import (
	"github.com/go-telegram/bot/models"

	"tg_attribution_bot/internal/attribution"
	"tg_attribution_bot/internal/logging"
)

const openAppButtonText = "🚀 Open app"

// welcomeKeyboard picks the button for the welcome message: an attributed
// startapp deep link when the token carries campaign data and the feature is
// enabled, otherwise the plain WebApp button.
func (c *Client) welcomeKeyboard(token attribution.Token) *models.InlineKeyboardMarkup {
	if !c.startappEnabled || !token.HasCampaignData() {
		return c.webAppKeyboard()
	}

	param := token.Encode()
	if attribution.OverLimit(param) {
		c.logger.WithFields(logging.Fields{
			"event":  "startapp_param_over_limit",
			"length": len(param),
			"param":  param,
		}).Warn("startapp parameter exceeds platform limit, link may be rejected")
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{
				Text: openAppButtonText,
				URL:  attribution.MiniAppLink(c.botUsername, param),
			},
		}},
	}
}

// webAppKeyboard is the generic fallback button opening the Mini App
// directly.
func (c *Client) webAppKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{
				Text:   openAppButtonText,
				WebApp: &models.WebAppInfo{URL: c.miniAppURL},
			},
		}},
	}
}
