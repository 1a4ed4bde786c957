package attribution

import "net/url"

const botLinkBase = "https://t.me/"

// MiniAppLink builds the bot deep link for a pre-encoded start parameter.
// An empty parameter yields the bare bot profile link. The bot username is
// used as-is; validating it is the caller's responsibility.
func MiniAppLink(botUsername, startParam string) string {
	if startParam == "" {
		return botLinkBase + botUsername
	}

	return botLinkBase + botUsername + "?startapp=" + url.QueryEscape(startParam)
}
