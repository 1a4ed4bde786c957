// Package leads submits bot-start leads to the backend CRM API.
package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_attribution_bot/internal/attribution"
	"tg_attribution_bot/internal/logging"
)

// requestTimeout bounds every backend call. Lead submission is
// fire-and-forget for the bot: a slow backend must never hold up a reply.
const requestTimeout = 3 * time.Second

const leadPath = "/leads/bot_start"

// Lead is one bot-start attribution record. The backend applies idempotent
// upsert semantics per user id.
type Lead struct {
	UserID int64
	UTM    attribution.Token
}

type leadBody struct {
	UserID  int64             `json:"userId"`
	UTM     map[string]string `json:"utm"`
	PromoID string            `json:"promoId,omitempty"`
}

// Client talks to the backend lead API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient constructs a lead API client for the given base URL.
func NewClient(baseURL string, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// SendLead posts the lead to the backend. Failures are logged and returned,
// but callers treat them as non-fatal; there is no retry.
func (c *Client) SendLead(ctx context.Context, lead Lead) error {
	if c == nil || c.httpClient == nil {
		return errors.New("lead client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if lead.UserID == 0 {
		return errors.New("user id is required")
	}

	body, err := json.Marshal(leadBody{
		UserID:  lead.UserID,
		UTM:     lead.UTM.UTMMap(),
		PromoID: lead.UTM.PromoID,
	})
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+leadPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build lead request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "lead_send_failed",
			"user_id": lead.UserID,
		}).WithError(err).Error("lead submission failed")

		return fmt.Errorf("send lead: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.WithFields(logging.Fields{
			"event":   "lead_send_rejected",
			"user_id": lead.UserID,
			"status":  resp.StatusCode,
		}).Error("lead rejected by backend")

		return fmt.Errorf("send lead: backend returned %d", resp.StatusCode)
	}

	c.logger.WithFields(logging.Fields{
		"event":   "lead_sent",
		"user_id": lead.UserID,
	}).Info("lead submitted")

	return nil
}

// HealthCheck probes the backend health endpoint and reports reachability.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if c == nil || c.httpClient == nil || ctx == nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer drainAndClose(resp.Body)

	return resp.StatusCode < http.StatusBadRequest
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
