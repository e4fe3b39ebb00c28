// Package sentry scrubs credentials and user content from Sentry events
// before they leave the process.
package sentry

import (
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"
)

const filtered = "[Filtered]"

// sensitiveHeaders are matched case-insensitively.
var sensitiveHeaders = map[string]bool{
	"authorization":          true,
	"cookie":                 true,
	"set-cookie":             true,
	"sec-websocket-protocol": true,
}

// sensitiveKeys are tag, breadcrumb, and query parameter names whose values
// are credentials or private content.
var sensitiveKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"jwt":           true,
	"secret":        true,
	"authorization": true,
	"cookie":        true,
	"message":       true,
	"content":       true,
}

// ScrubEvent redacts sensitive headers and query parameters, drops request
// bodies (chat messages and comments), and filters tags and breadcrumb data.
func ScrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if req := event.Request; req != nil {
		for header := range req.Headers {
			if sensitiveHeaders[strings.ToLower(header)] {
				req.Headers[header] = filtered
			}
		}
		req.Data = ""
		req.Cookies = ""
		req.QueryString = scrubQuery(req.QueryString)
		req.URL = scrubURL(req.URL)
	}

	scrubMap(event.Tags)
	for i := range event.Breadcrumbs {
		b := event.Breadcrumbs[i]
		for key, v := range b.Data {
			if sensitiveKeys[strings.ToLower(key)] {
				b.Data[key] = filtered
				continue
			}
			if s, ok := v.(string); ok && strings.Contains(s, "token=") {
				b.Data[key] = scrubURL(s)
			}
		}
	}

	return event
}

// ScrubTransaction applies the same scrubbing logic to transaction events.
func ScrubTransaction(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	return ScrubEvent(event, hint)
}

func scrubMap(m map[string]string) {
	for key := range m {
		if sensitiveKeys[strings.ToLower(key)] {
			m[key] = filtered
		}
	}
}

func scrubQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		// Unparsable queries are dropped rather than risk leaking a token.
		return ""
	}
	changed := false
	for key := range values {
		if sensitiveKeys[strings.ToLower(key)] {
			values[key] = []string{filtered}
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}

func scrubURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	u.RawQuery = scrubQuery(u.RawQuery)
	return u.String()
}
