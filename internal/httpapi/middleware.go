package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tg_attribution_bot/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with a correlation id, echoed in the response
// headers and attached to access log entries.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)

		logging.WithContext(logging.Context{RequestID: id, Event: "http_request"}).WithFields(logging.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("handling http request")

		next.ServeHTTP(w, r)
	})
}

// authenticated enforces the shared-secret bearer credential. When no secret
// is configured, authentication is skipped entirely.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			s.logger.WithFields(logging.Fields{
				"event": "http_auth_missing",
				"path":  r.URL.Path,
			}).Warn("missing authorization header")

			s.writeJSON(w, http.StatusUnauthorized, apiResponse{Error: "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token != s.secret {
			s.logger.WithFields(logging.Fields{
				"event": "http_auth_invalid",
				"path":  r.URL.Path,
			}).Warn("invalid API key")

			s.writeJSON(w, http.StatusUnauthorized, apiResponse{Error: "invalid API key"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// paymentLogGate rejects payment logging requests while the feature switch
// is off.
func (s *Server) paymentLogGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.paymentLogEnabled {
			s.logger.WithFields(logging.Fields{
				"event": "payment_log_disabled",
				"path":  r.URL.Path,
			}).Warn("payment logging is disabled")

			s.writeJSON(w, http.StatusServiceUnavailable, apiResponse{Error: "payment logging is currently disabled"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
