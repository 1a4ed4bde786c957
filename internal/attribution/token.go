// Package attribution implements the compact UTM/promo payload codec used in
// deep-link start parameters and the Mini App link builder.
package attribution

import (
	"net/url"
	"strings"
)

// MaxStartParamLen is the platform ceiling for deep-link start parameters.
// Exceeding it does not fail encoding, but Telegram may reject the link.
const MaxStartParamLen = 64

// Token carries the marketing attribution of a single bot start: up to five
// UTM dimensions plus an optional promo id. All fields are optional.
type Token struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
	PromoID  string
}

// Compact aliases keep encoded payloads inside the start parameter limit.
const (
	aliasSource   = "us"
	aliasMedium   = "um"
	aliasCampaign = "uc"
	aliasTerm     = "ut"
	aliasContent  = "ucn"
)

var keyAliases = map[string]string{
	aliasSource:    "utm_source",
	aliasMedium:    "utm_medium",
	aliasCampaign:  "utm_campaign",
	aliasTerm:      "utm_term",
	aliasContent:   "utm_content",
	"utm_source":   "utm_source",
	"utm_medium":   "utm_medium",
	"utm_campaign": "utm_campaign",
	"utm_term":     "utm_term",
	"utm_content":  "utm_content",
}

// Decode parses a raw start payload into a Token. Empty or whitespace-only
// input yields a zero Token. Malformed percent-encoding also yields a zero
// Token: losing attribution is preferred over blocking the user flow.
func Decode(raw string) Token {
	var token Token

	if strings.TrimSpace(raw) == "" {
		return token
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return Token{}
	}

	for _, pair := range strings.Split(decoded, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}

		switch keyAliases[key] {
		case "utm_source":
			token.Source = value
		case "utm_medium":
			token.Medium = value
		case "utm_campaign":
			token.Campaign = value
		case "utm_term":
			token.Term = value
		case "utm_content":
			token.Content = value
		default:
			if key == "promo" || key == "promo_id" {
				token.PromoID = value
			}
		}
	}

	return token
}

// Encode serializes the token into a compact percent-encoded start parameter.
// Fields are emitted in a fixed order (source, medium, campaign, term,
// content, promo) using the compact aliases; absent fields are skipped. An
// empty token encodes to an empty string.
func (t Token) Encode() string {
	parts := make([]string, 0, 6)

	appendPart := func(alias, value string) {
		if value != "" {
			parts = append(parts, alias+"="+url.QueryEscape(value))
		}
	}

	appendPart(aliasSource, t.Source)
	appendPart(aliasMedium, t.Medium)
	appendPart(aliasCampaign, t.Campaign)
	appendPart(aliasTerm, t.Term)
	appendPart(aliasContent, t.Content)
	appendPart("promo", t.PromoID)

	return strings.Join(parts, "&")
}

// OverLimit reports whether an encoded start parameter exceeds the platform
// ceiling. Callers surface this as a warning; the link is still produced.
func OverLimit(encoded string) bool {
	return len(encoded) > MaxStartParamLen
}

// IsEmpty reports whether the token carries no attribution at all.
func (t Token) IsEmpty() bool {
	return t == Token{}
}

// UTMMap returns the UTM dimensions as a full-key map for JSON payloads,
// omitting absent fields. The promo id is not part of the map; it travels
// as its own field on the wire.
func (t Token) UTMMap() map[string]string {
	utm := make(map[string]string)

	if t.Source != "" {
		utm["utm_source"] = t.Source
	}
	if t.Medium != "" {
		utm["utm_medium"] = t.Medium
	}
	if t.Campaign != "" {
		utm["utm_campaign"] = t.Campaign
	}
	if t.Term != "" {
		utm["utm_term"] = t.Term
	}
	if t.Content != "" {
		utm["utm_content"] = t.Content
	}

	return utm
}

// FromUTMMap builds a Token from a full-key UTM map and a separate promo id,
// the shape used by the HTTP endpoints.
func FromUTMMap(utm map[string]string, promoID string) Token {
	return Token{
		Source:   utm["utm_source"],
		Medium:   utm["utm_medium"],
		Campaign: utm["utm_campaign"],
		Term:     utm["utm_term"],
		Content:  utm["utm_content"],
		PromoID:  promoID,
	}
}

// HasCampaignData reports whether the token carries actionable campaign
// attribution: at least one of source, campaign, or medium. This predicate,
// not IsEmpty, decides between the attributed deep link and the generic
// WebApp button.
func (t Token) HasCampaignData() bool {
	return t.Source != "" || t.Campaign != "" || t.Medium != ""
}
