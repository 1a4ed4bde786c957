package leads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_attribution_bot/internal/attribution"
)

func newTestClient(baseURL string) *Client {
	logger, _ := logtest.NewNullLogger()
	return NewClient(baseURL, logrus.NewEntry(logger))
}

func TestSendLeadPostsExpectedBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.SendLead(context.Background(), Lead{
		UserID: 42,
		UTM:    attribution.Token{Source: "ads", Campaign: "spring", PromoID: "W25"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/leads/bot_start" {
		t.Fatalf("expected /leads/bot_start, got %s", gotPath)
	}

	if gotBody["userId"] != float64(42) {
		t.Fatalf("expected userId 42, got %v", gotBody["userId"])
	}

	utm, ok := gotBody["utm"].(map[string]any)
	if !ok || utm["utm_source"] != "ads" || utm["utm_campaign"] != "spring" {
		t.Fatalf("unexpected utm payload: %v", gotBody["utm"])
	}

	if gotBody["promoId"] != "W25" {
		t.Fatalf("expected promoId W25, got %v", gotBody["promoId"])
	}
}

func TestSendLeadReportsBackendRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	if err := client.SendLead(context.Background(), Lead{UserID: 42}); err == nil {
		t.Fatalf("expected error for backend rejection")
	}
}

func TestSendLeadRequiresUserID(t *testing.T) {
	client := newTestClient("http://localhost:0")

	if err := client.SendLead(context.Background(), Lead{}); err == nil {
		t.Fatalf("expected error for missing user id")
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	if !newTestClient(healthy.URL).HealthCheck(context.Background()) {
		t.Fatalf("expected healthy backend to report true")
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	if newTestClient(broken.URL).HealthCheck(context.Background()) {
		t.Fatalf("expected unhealthy backend to report false")
	}
}
