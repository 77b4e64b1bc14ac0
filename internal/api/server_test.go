package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dayeon/mailcast/internal/analytics"
)

// recordingSink captures events forwarded by the webhook handler.
type recordingSink struct {
	events  []analytics.Event
	tenants []string
}

func (s *recordingSink) RecordEvent(tenant string, ev analytics.Event) error {
	s.events = append(s.events, ev)
	s.tenants = append(s.tenants, tenant)
	return nil
}

func (s *recordingSink) RecordStats(tenant, campaignID string, st analytics.Stats) error {
	return nil
}

func TestWebhook_SendgridBatch(t *testing.T) {
	sink := &recordingSink{}
	srv := httptest.NewServer(NewServer(sink).Router())
	defer srv.Close()

	body := `[
		{"event":"open","email":"a@example.com","category":["cmp-1"]},
		{"event":"processed","email":"a@example.com"},
		{"event":"click","email":"b@example.com","category":"cmp-1"}
	]`
	resp, err := http.Post(srv.URL+"/webhooks/sendgrid?shop=myshop", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 accepted events with unknown type dropped, got %d", len(sink.events))
	}
	if sink.events[0].Type != analytics.EventOpen || sink.events[1].Type != analytics.EventClick {
		t.Errorf("unexpected event types: %+v", sink.events)
	}
	if sink.tenants[0] != "myshop" {
		t.Errorf("expected tenant from query, got %q", sink.tenants[0])
	}
}

func TestWebhook_ResendSingleObject(t *testing.T) {
	sink := &recordingSink{}
	srv := httptest.NewServer(NewServer(sink).Router())
	defer srv.Close()

	body := `{"type":"email.bounced","data":{"email_id":"re-1","to":["a@example.com"],"tags":{"campaign_id":"cmp-9"}}}`
	resp, err := http.Post(srv.URL+"/webhooks/resend?shop=myshop", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != analytics.EventBounce || ev.CampaignID != "cmp-9" || ev.Recipient != "a@example.com" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	sink := &recordingSink{}
	srv := httptest.NewServer(NewServer(sink).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhooks/sendgrid", "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebhook_UnknownProviderAcceptsAndIgnores(t *testing.T) {
	sink := &recordingSink{}
	srv := httptest.NewServer(NewServer(sink).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhooks/mailchimp", "application/json", strings.NewReader(`{"event":"open"}`))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for unknown provider, got %d", resp.StatusCode)
	}
	if len(sink.events) != 0 {
		t.Errorf("expected no events recorded, got %d", len(sink.events))
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewServer(&recordingSink{}).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(&recordingSink{}).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
