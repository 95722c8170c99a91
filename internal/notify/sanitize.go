package notify

import (
	"net/url"
	"strings"
)

// MaxMessageRunes caps outgoing Slack messages.
const MaxMessageRunes = 3000

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Sanitize prepares text for inclusion in a Slack message: truncates to max
// runes, escapes markup characters and strips control characters (tabs and
// newlines survive).
func Sanitize(text string, max int) string {
	if text == "" {
		return ""
	}
	text = Clip(text, max)
	text = slackEscaper.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Clip truncates to max runes, marking the cut with an ellipsis. Unlike
// Sanitize it leaves markup alone, for fields that get escaped later.
func Clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// MaskURL hides the secret part of a webhook URL for logs and errors.
func MaskURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}
