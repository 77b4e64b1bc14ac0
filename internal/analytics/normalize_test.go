package analytics

import (
	"testing"
)

func TestNormalizeWebhook_Sendgrid(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		wantOK   bool
		wantType EventType
	}{
		{"delivered", map[string]any{"event": "delivered", "email": "a@example.com"}, true, EventDelivered},
		{"open", map[string]any{"event": "open"}, true, EventOpen},
		{"click", map[string]any{"event": "click"}, true, EventClick},
		{"group unsubscribe", map[string]any{"event": "group_unsubscribe"}, true, EventUnsubscribe},
		{"dropped maps to bounce", map[string]any{"event": "dropped"}, true, EventBounce},
		{"unknown event ignored", map[string]any{"event": "processed"}, false, ""},
		{"missing event ignored", map[string]any{}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := NormalizeWebhook("sendgrid", tt.payload)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && ev.Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, ev.Type)
			}
		})
	}
}

func TestNormalizeWebhook_SendgridCategoryList(t *testing.T) {
	ev, ok := NormalizeWebhook("sendgrid", map[string]any{
		"event":    "open",
		"email":    "a@example.com",
		"category": []any{"cmp-1", "newsletter"},
	})
	if !ok {
		t.Fatal("expected event to normalize")
	}
	if ev.CampaignID != "cmp-1" {
		t.Errorf("expected first category as campaign id, got %q", ev.CampaignID)
	}
	if ev.Recipient != "a@example.com" {
		t.Errorf("expected recipient, got %q", ev.Recipient)
	}
}

func TestNormalizeWebhook_SendgridCategoryString(t *testing.T) {
	ev, ok := NormalizeWebhook("sendgrid", map[string]any{
		"event":    "click",
		"category": "cmp-2",
	})
	if !ok {
		t.Fatal("expected event to normalize")
	}
	if ev.CampaignID != "cmp-2" {
		t.Errorf("expected campaign id cmp-2, got %q", ev.CampaignID)
	}
}

func TestNormalizeWebhook_Resend(t *testing.T) {
	ev, ok := NormalizeWebhook("resend", map[string]any{
		"type": "email.opened",
		"data": map[string]any{
			"email_id": "re-9",
			"to":       []any{"a@example.com"},
			"tags":     map[string]any{"campaign_id": "cmp-3"},
		},
	})
	if !ok {
		t.Fatal("expected event to normalize")
	}
	if ev.Type != EventOpen {
		t.Errorf("expected open, got %s", ev.Type)
	}
	if ev.CampaignID != "cmp-3" {
		t.Errorf("expected campaign id cmp-3, got %q", ev.CampaignID)
	}
	if ev.Recipient != "a@example.com" {
		t.Errorf("expected recipient, got %q", ev.Recipient)
	}
	if ev.MessageID != "re-9" {
		t.Errorf("expected message id re-9, got %q", ev.MessageID)
	}
}

func TestNormalizeWebhook_UnknownProvider(t *testing.T) {
	if _, ok := NormalizeWebhook("mailchimp", map[string]any{"event": "open"}); ok {
		t.Error("expected unknown provider events to be ignored")
	}
}

func TestNormalizeStats_Sendgrid(t *testing.T) {
	got := NormalizeStats("sendgrid", map[string]any{
		"delivered":     float64(100),
		"unique_opens":  "42",
		"unique_clicks": float64(7),
		"unsubscribes":  float64(3),
		"bounces":       "2",
	})
	want := Stats{Delivered: 100, Opened: 42, Clicked: 7, Unsubscribed: 3, Bounced: 2}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestNormalizeStats_SendgridOpensFallback(t *testing.T) {
	got := NormalizeStats("sendgrid", map[string]any{"opens": float64(9)})
	if got.Opened != 9 {
		t.Errorf("expected opens fallback when unique_opens missing, got %d", got.Opened)
	}
}

func TestNormalizeStats_Resend(t *testing.T) {
	got := NormalizeStats("resend", map[string]any{
		"delivered_count": float64(50),
		"opened_count":    float64(20),
		"clicked_count":   "bad",
	})
	if got.Delivered != 50 || got.Opened != 20 {
		t.Errorf("unexpected stats: %+v", got)
	}
	if got.Clicked != 0 {
		t.Errorf("expected unparseable value to coerce to zero, got %d", got.Clicked)
	}
}

func TestNormalizeStats_NilPayload(t *testing.T) {
	if got := NormalizeStats("sendgrid", nil); got != (Stats{}) {
		t.Errorf("expected zero stats for nil payload, got %+v", got)
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"float64", float64(12), 12},
		{"int", 7, 7},
		{"numeric string", "34", 34},
		{"padded string", " 5 ", 5},
		{"garbage string", "n/a", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asInt(tt.in); got != tt.want {
				t.Errorf("asInt(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
