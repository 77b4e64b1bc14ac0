// Package analytics normalizes provider-specific webhook events and stats
// payloads into one internal shape.
package analytics

import (
	"strconv"
	"strings"
)

// EventType is the internal classification of a provider webhook event.
type EventType string

const (
	EventDelivered   EventType = "delivered"
	EventOpen        EventType = "open"
	EventClick       EventType = "click"
	EventUnsubscribe EventType = "unsubscribe"
	EventBounce      EventType = "bounce"
)

// Event is a normalized webhook event.
type Event struct {
	Type       EventType
	CampaignID string
	MessageID  string
	Recipient  string
}

// Stats is the fixed aggregate stats struct every provider payload is
// reduced to. The zero value is the designed fallback for any fetch or
// parse failure.
type Stats struct {
	Delivered    int `json:"delivered"`
	Opened       int `json:"opened"`
	Clicked      int `json:"clicked"`
	Unsubscribed int `json:"unsubscribed"`
	Bounced      int `json:"bounced"`
}

// sendgridEventTypes maps SendGrid webhook event strings to internal types.
var sendgridEventTypes = map[string]EventType{
	"delivered":         EventDelivered,
	"open":              EventOpen,
	"click":             EventClick,
	"unsubscribe":       EventUnsubscribe,
	"group_unsubscribe": EventUnsubscribe,
	"bounce":            EventBounce,
	"dropped":           EventBounce,
}

// resendEventTypes maps Resend webhook event strings to internal types.
var resendEventTypes = map[string]EventType{
	"email.delivered":    EventDelivered,
	"email.opened":       EventOpen,
	"email.clicked":      EventClick,
	"email.unsubscribed": EventUnsubscribe,
	"email.bounced":      EventBounce,
	"email.complained":   EventBounce,
}

// NormalizeWebhook maps one provider webhook payload to an internal Event.
// Unknown providers and unknown event types yield ok=false; that is not an
// error, the event is simply ignored.
func NormalizeWebhook(providerName string, payload map[string]any) (Event, bool) {
	switch providerName {
	case "sendgrid":
		return normalizeSendgridEvent(payload)
	case "resend":
		return normalizeResendEvent(payload)
	default:
		return Event{}, false
	}
}

func normalizeSendgridEvent(payload map[string]any) (Event, bool) {
	typ, ok := sendgridEventTypes[asString(payload["event"])]
	if !ok {
		return Event{}, false
	}

	ev := Event{
		Type:      typ,
		MessageID: asString(payload["sg_message_id"]),
		Recipient: asString(payload["email"]),
	}

	// SendGrid carries the campaign id in the category field, which may be
	// a single string or a list; the first element wins.
	switch cat := payload["category"].(type) {
	case string:
		ev.CampaignID = cat
	case []any:
		if len(cat) > 0 {
			ev.CampaignID = asString(cat[0])
		}
	}
	return ev, true
}

func normalizeResendEvent(payload map[string]any) (Event, bool) {
	typ, ok := resendEventTypes[asString(payload["type"])]
	if !ok {
		return Event{}, false
	}

	ev := Event{Type: typ}
	data, _ := payload["data"].(map[string]any)
	if data == nil {
		return ev, true
	}

	ev.MessageID = asString(data["email_id"])
	if tos, ok := data["to"].([]any); ok && len(tos) > 0 {
		ev.Recipient = asString(tos[0])
	} else {
		ev.Recipient = asString(data["to"])
	}
	if tags, ok := data["tags"].(map[string]any); ok {
		ev.CampaignID = asString(tags["campaign_id"])
	}
	return ev, true
}

// NormalizeStats reduces a raw provider stats payload to Stats. Field names
// differ per provider; values may arrive as numbers or strings.
func NormalizeStats(providerName string, raw map[string]any) Stats {
	if raw == nil {
		return Stats{}
	}

	switch providerName {
	case "sendgrid":
		return Stats{
			Delivered:    asInt(raw["delivered"]),
			Opened:       firstInt(raw, "unique_opens", "opens"),
			Clicked:      firstInt(raw, "unique_clicks", "clicks"),
			Unsubscribed: asInt(raw["unsubscribes"]),
			Bounced:      asInt(raw["bounces"]),
		}
	case "resend":
		return Stats{
			Delivered:    asInt(raw["delivered_count"]),
			Opened:       asInt(raw["opened_count"]),
			Clicked:      asInt(raw["clicked_count"]),
			Unsubscribed: asInt(raw["unsubscribed_count"]),
			Bounced:      asInt(raw["bounced_count"]),
		}
	default:
		// Fall back to the internal field names so pre-normalized payloads
		// pass through.
		return Stats{
			Delivered:    asInt(raw["delivered"]),
			Opened:       asInt(raw["opened"]),
			Clicked:      asInt(raw["clicked"]),
			Unsubscribed: asInt(raw["unsubscribed"]),
			Bounced:      asInt(raw["bounced"]),
		}
	}
}

func firstInt(raw map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return asInt(v)
		}
	}
	return 0
}

// asInt coerces a JSON value (float64, int, or numeric string) to int,
// returning 0 for anything else.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
