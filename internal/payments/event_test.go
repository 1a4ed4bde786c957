package payments

import (
	"errors"
	"strings"
	"testing"
	"time"

	"tg_attribution_bot/internal/attribution"
)

func validInput() EventInput {
	return EventInput{
		UserID:           42,
		PaymentID:        "pay-1",
		Amount:           100,
		Currency:         "XTR",
		RegistrationTime: "2025-01-01T10:00:00Z",
		PaymentTime:      "2025-01-01T11:30:00Z",
		UTM:              attribution.Token{Source: "ads"},
	}
}

func TestValidateAndDeriveSuccess(t *testing.T) {
	event, err := ValidateAndDerive(validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.TimeToPayment != 90*time.Minute {
		t.Fatalf("expected 90m time to payment, got %s", event.TimeToPayment)
	}

	if event.UTM.Source != "ads" {
		t.Fatalf("expected attribution to be carried through, got %+v", event.UTM)
	}
}

func TestValidateAndDeriveMissingFields(t *testing.T) {
	input := validInput()
	input.PaymentID = ""
	input.Currency = " "

	_, err := ValidateAndDerive(input)

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if validation.Kind != KindMissingField {
		t.Fatalf("expected missing field kind, got %s", validation.Kind)
	}

	if !strings.Contains(validation.Message, "paymentId") || !strings.Contains(validation.Message, "currency") {
		t.Fatalf("expected message to list missing fields, got %q", validation.Message)
	}
}

func TestValidateAndDeriveInvalidTimestamp(t *testing.T) {
	input := validInput()
	input.PaymentTime = "yesterday"

	_, err := ValidateAndDerive(input)

	var validation *ValidationError
	if !errors.As(err, &validation) || validation.Kind != KindInvalidTimestamp {
		t.Fatalf("expected invalid timestamp error, got %v", err)
	}
}

func TestValidateAndDeriveNegativeDuration(t *testing.T) {
	input := validInput()
	input.RegistrationTime = "2025-01-02T00:00:00Z"
	input.PaymentTime = "2025-01-01T00:00:00Z"

	_, err := ValidateAndDerive(input)

	var validation *ValidationError
	if !errors.As(err, &validation) || validation.Kind != KindNegativeDuration {
		t.Fatalf("expected negative duration error, got %v", err)
	}
}

func TestValidateAndDeriveZeroDuration(t *testing.T) {
	input := validInput()
	input.PaymentTime = input.RegistrationTime

	event, err := ValidateAndDerive(input)
	if err != nil {
		t.Fatalf("unexpected error for equal timestamps: %v", err)
	}

	if event.TimeToPayment != 0 {
		t.Fatalf("expected zero time to payment, got %s", event.TimeToPayment)
	}
}

func TestHumanizeDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{5400000, "1h 30m"},
		{45000, "45s"},
		{0, "0s"},
		{59999, "59s"},
		{60000, "1m 0s"},
		{90000, "1m 30s"},
		{3600000, "1h 0m"},
		{90000000, "1d 1h"},
		{-5, "0s"},
	}

	for _, tc := range tests {
		if got := HumanizeDuration(tc.ms); got != tc.want {
			t.Fatalf("HumanizeDuration(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}
