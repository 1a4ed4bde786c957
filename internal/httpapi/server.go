// Package httpapi exposes the HTTP surface of the bot: health, payment
// logging, and Stars invoice creation.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_attribution_bot/internal/attribution"
	"tg_attribution_bot/internal/channellog"
	"tg_attribution_bot/internal/config"
	"tg_attribution_bot/internal/logging"
	"tg_attribution_bot/internal/payments"
)

const (
	readHeaderTimeout = 2 * time.Second
	backgroundTimeout = 10 * time.Second
	maxBodyBytes      = 2 << 20 // large enough for any log request
)

// invoiceCreator is the slice of the Stars flow the API depends on.
type invoiceCreator interface {
	CreateInvoice(ctx context.Context, req payments.InvoiceRequest) (string, error)
}

// channelSink is the slice of the channel logger the API depends on.
type channelSink interface {
	LogPayment(ctx context.Context, event payments.Event) error
	LogPaymentCreation(ctx context.Context, creation channellog.CreationLog) error
}

// Server hosts the HTTP API and owns the underlying HTTP server.
type Server struct {
	server            *http.Server
	logger            *logrus.Entry
	secret            string
	paymentLogEnabled bool
	channel           channelSink
	flow              invoiceCreator
	now               func() time.Time

	// background runs a fire-and-forget task with its own error boundary;
	// replaced with a synchronous runner in tests.
	background func(task func(ctx context.Context))
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// NewServer constructs the API server on the configured port.
func NewServer(cfg config.Config, channel channelSink, flow invoiceCreator, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	if cfg.APISecretKey == "" {
		logger.WithField("event", "http_auth_disabled").Warn("API secret key not configured, HTTP authentication is skipped")
	}

	srv := &Server{
		logger:            logger,
		secret:            cfg.APISecretKey,
		paymentLogEnabled: cfg.PaymentLogEnabled,
		channel:           channel,
		flow:              flow,
		now:               time.Now,
	}
	srv.background = srv.runDetached

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.Handle("POST /api/payment-log", srv.authenticated(srv.paymentLogGate(http.HandlerFunc(srv.handlePaymentLog))))
	mux.Handle("POST /api/payment-creation-log", srv.authenticated(srv.paymentLogGate(http.HandlerFunc(srv.handlePaymentCreationLog))))
	mux.Handle("POST /api/create-invoice", srv.authenticated(http.HandlerFunc(srv.handleCreateInvoice)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           srv.requestID(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the API server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "http_listen",
		"addr":  s.server.Addr,
	}).Info("starting http api server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "http_stopped").Info("http api server stopped")
			return nil
		}

		return fmt.Errorf("http api listen: %w", err)
	}

	s.logger.WithField("event", "http_stopped").Info("http api server stopped")
	return nil
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Success               bool   `json:"success"`
		Message               string `json:"message"`
		Timestamp             string `json:"timestamp"`
		PaymentLoggingEnabled bool   `json:"paymentLoggingEnabled"`
	}{
		Success:               true,
		Message:               "bot is running",
		Timestamp:             s.now().UTC().Format(time.RFC3339),
		PaymentLoggingEnabled: s.paymentLogEnabled,
	})
}

type paymentLogRequest struct {
	UserID           int64             `json:"userId"`
	Username         string            `json:"username"`
	FirstName        string            `json:"firstName"`
	LastName         string            `json:"lastName"`
	PaymentID        string            `json:"paymentId"`
	Amount           float64           `json:"amount"`
	Currency         string            `json:"currency"`
	RegistrationTime string            `json:"registrationTime"`
	PaymentTime      string            `json:"paymentTime"`
	UTM              map[string]string `json:"utm"`
	PromoID          string            `json:"promoId"`
}

func (s *Server) handlePaymentLog(w http.ResponseWriter, r *http.Request) {
	var req paymentLogRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	event, err := payments.ValidateAndDerive(payments.EventInput{
		UserID:           req.UserID,
		Username:         req.Username,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		PaymentID:        req.PaymentID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		RegistrationTime: req.RegistrationTime,
		PaymentTime:      req.PaymentTime,
		UTM:              attribution.FromUTMMap(req.UTM, req.PromoID),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.channel != nil {
		s.background(func(ctx context.Context) {
			_ = s.channel.LogPayment(ctx, event)
		})
	}

	s.logger.WithFields(logging.Fields{
		"event":           "payment_log_accepted",
		"user_id":         event.UserID,
		"payment_id":      event.PaymentID,
		"time_to_payment": event.TimeToPayment.Milliseconds(),
	}).Info("payment log request processed")

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "payment logged",
		Data: map[string]any{
			"userId":        event.UserID,
			"paymentId":     event.PaymentID,
			"timeToPayment": event.TimeToPayment.Milliseconds(),
		},
	})
}

type paymentCreationLogRequest struct {
	UserID     int64             `json:"userId"`
	Username   string            `json:"username"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	PaymentID  string            `json:"paymentId"`
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	TariffName string            `json:"tariffName"`
	UTM        map[string]string `json:"utm"`
	PromoID    string            `json:"promoId"`
}

func (s *Server) handlePaymentCreationLog(w http.ResponseWriter, r *http.Request) {
	var req paymentCreationLogRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	missing := make([]string, 0)
	if req.UserID == 0 {
		missing = append(missing, "userId")
	}
	if req.PaymentID == "" {
		missing = append(missing, "paymentId")
	}
	if req.Amount == 0 {
		missing = append(missing, "amount")
	}
	if req.Currency == "" {
		missing = append(missing, "currency")
	}

	if len(missing) > 0 {
		s.writeError(w, &payments.ValidationError{
			Kind:    payments.KindMissingField,
			Message: "missing required fields: " + strings.Join(missing, ", "),
		})
		return
	}

	creation := channellog.CreationLog{
		UserID:     req.UserID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		PaymentID:  req.PaymentID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		TariffName: req.TariffName,
		UTM:        attribution.FromUTMMap(req.UTM, req.PromoID),
		Timestamp:  s.now(),
	}

	if s.channel != nil {
		s.background(func(ctx context.Context) {
			_ = s.channel.LogPaymentCreation(ctx, creation)
		})
	}

	s.logger.WithFields(logging.Fields{
		"event":      "payment_creation_log_accepted",
		"user_id":    req.UserID,
		"payment_id": req.PaymentID,
	}).Info("payment creation log request processed")

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "payment creation logged",
		Data: map[string]any{
			"userId":     req.UserID,
			"paymentId":  req.PaymentID,
			"amount":     req.Amount,
			"tariffName": req.TariffName,
		},
	})
}

type createInvoiceRequest struct {
	UserID      int64  `json:"userId"`
	ProductName string `json:"productName"`
	Description string `json:"description"`
	Amount      int    `json:"amount"`
	Currency    string `json:"currency"`
	Payload     string `json:"payload"`
	PhotoURL    string `json:"photoUrl"`
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if s.flow == nil {
		s.writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "payments are not configured"})
		return
	}

	// Resolve the correlation payload here so the creation log below carries
	// the same id the flow will use.
	if strings.TrimSpace(req.Payload) == "" {
		req.Payload = payments.LocalPaymentID(req.UserID, s.now())
	}

	link, err := s.flow.CreateInvoice(r.Context(), payments.InvoiceRequest{
		UserID:      req.UserID,
		ProductName: req.ProductName,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Payload:     req.Payload,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.channel != nil {
		creation := channellog.CreationLog{
			UserID:     req.UserID,
			PaymentID:  req.Payload,
			Amount:     float64(req.Amount),
			Currency:   payments.StarsCurrency,
			TariffName: req.ProductName,
			Timestamp:  s.now(),
		}
		s.background(func(ctx context.Context) {
			_ = s.channel.LogPaymentCreation(ctx, creation)
		})
	}

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    map[string]any{"invoiceLink": link},
	})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid JSON body"})
		return false
	}

	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validation *payments.ValidationError
	if errors.As(err, &validation) {
		s.writeJSON(w, http.StatusBadRequest, apiResponse{Error: validation.Message})
		return
	}

	var gateway *payments.GatewayError
	if errors.As(err, &gateway) {
		s.writeJSON(w, http.StatusInternalServerError, apiResponse{Error: gateway.Error()})
		return
	}

	s.logger.WithField("event", "http_internal_error").WithError(err).Error("unexpected handler error")
	s.writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "internal server error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithField("event", "http_write_error").WithError(err).Error("failed to encode response")
	}
}

func (s *Server) runDetached(task func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		task(ctx)
	}()
}
