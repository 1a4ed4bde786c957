package attribution

import (
	"strings"
	"testing"
)

func TestDecodeEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t"} {
		token := Decode(raw)
		if !token.IsEmpty() {
			t.Fatalf("expected empty token for %q, got %+v", raw, token)
		}
	}
}

func TestDecodeCompactAliases(t *testing.T) {
	token := Decode("us=ads&promo=WINTER")

	if token.Source != "ads" {
		t.Fatalf("expected source ads, got %q", token.Source)
	}
	if token.PromoID != "WINTER" {
		t.Fatalf("expected promo WINTER, got %q", token.PromoID)
	}
}

func TestDecodeFullNamesAndPromoID(t *testing.T) {
	token := Decode("utm_source=google&utm_medium=cpc&utm_campaign=spring&utm_term=verbs&utm_content=v2&promo_id=ABC")

	want := Token{Source: "google", Medium: "cpc", Campaign: "spring", Term: "verbs", Content: "v2", PromoID: "ABC"}
	if token != want {
		t.Fatalf("expected %+v, got %+v", want, token)
	}
}

func TestDecodeSkipsBrokenPairsAndUnknownKeys(t *testing.T) {
	token := Decode("us=ads&novalue=&=nokey&bare&foo=bar")

	if token.Source != "ads" {
		t.Fatalf("expected source ads, got %q", token.Source)
	}
	if token != (Token{Source: "ads"}) {
		t.Fatalf("expected only source to be set, got %+v", token)
	}
}

func TestDecodeMalformedEscapeDegradesToEmpty(t *testing.T) {
	token := Decode("us=%zz")
	if !token.IsEmpty() {
		t.Fatalf("expected empty token for malformed escape, got %+v", token)
	}
}

func TestDecodePercentEncodedValues(t *testing.T) {
	token := Decode("us=google%20ads&uc=spring")

	if token.Source != "google ads" {
		t.Fatalf("expected decoded source, got %q", token.Source)
	}
	if token.Campaign != "spring" {
		t.Fatalf("expected campaign spring, got %q", token.Campaign)
	}
}

func TestEncodeOrderAndAliases(t *testing.T) {
	encoded := Token{Source: "ads", Campaign: "x"}.Encode()

	if encoded != "us=ads&uc=x" {
		t.Fatalf("expected us=ads&uc=x, got %q", encoded)
	}

	full := Token{
		Source:   "s",
		Medium:   "m",
		Campaign: "c",
		Term:     "t",
		Content:  "n",
		PromoID:  "p",
	}.Encode()

	if full != "us=s&um=m&uc=c&ut=t&ucn=n&promo=p" {
		t.Fatalf("unexpected encode order: %q", full)
	}
}

func TestEncodeEmptyToken(t *testing.T) {
	if encoded := (Token{}).Encode(); encoded != "" {
		t.Fatalf("expected empty string, got %q", encoded)
	}
}

func TestEncodeOverLimit(t *testing.T) {
	token := Token{
		Source:   strings.Repeat("a", 30),
		Campaign: strings.Repeat("b", 40),
	}

	encoded := token.Encode()
	if !OverLimit(encoded) {
		t.Fatalf("expected %d-char param to be over the %d limit", len(encoded), MaxStartParamLen)
	}

	if OverLimit("us=ads") {
		t.Fatalf("expected short param to be within limit")
	}
}

func TestRoundTrip(t *testing.T) {
	tokens := []Token{
		{Source: "ads"},
		{Source: "google ads", Medium: "cpc"},
		{Campaign: "spring sale", PromoID: "WINTER25"},
		{Source: "tg", Medium: "social", Campaign: "c1", Term: "t1", Content: "v2", PromoID: "P"},
	}

	for _, token := range tokens {
		encoded := token.Encode()
		if OverLimit(encoded) {
			t.Fatalf("test token unexpectedly over limit: %q", encoded)
		}

		decoded := Decode(encoded)
		if decoded != token {
			t.Fatalf("round trip mismatch: %+v -> %q -> %+v", token, encoded, decoded)
		}
	}
}

func TestHasCampaignData(t *testing.T) {
	if !(Token{Source: "ads"}).HasCampaignData() {
		t.Fatalf("expected source to count as campaign data")
	}
	if !(Token{Medium: "cpc"}).HasCampaignData() {
		t.Fatalf("expected medium to count as campaign data")
	}
	if (Token{Term: "x"}).HasCampaignData() {
		t.Fatalf("expected term alone to not count as campaign data")
	}
	if (Token{PromoID: "P"}).HasCampaignData() {
		t.Fatalf("expected promo alone to not count as campaign data")
	}
}

func TestMiniAppLink(t *testing.T) {
	if link := MiniAppLink("test_bot", ""); link != "https://t.me/test_bot" {
		t.Fatalf("expected bare profile link, got %q", link)
	}

	link := MiniAppLink("test_bot", "us=ads&promo=W")
	if link != "https://t.me/test_bot?startapp=us%3Dads%26promo%3DW" {
		t.Fatalf("expected escaped startapp link, got %q", link)
	}
}
