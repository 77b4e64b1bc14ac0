package provider

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dayeon/mailcast/internal/analytics"
)

func TestResend_Send_Success(t *testing.T) {
	var captured *HTTPRequest
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			captured = req
			return &HTTPResponse{StatusCode: 200, Body: []byte(`{"id":"re-1"}`)}, nil
		},
	}

	re := NewResend(Config{Type: "resend", APIKey: "re-key"}, client)
	err := re.Send(context.Background(), &Message{
		From:       "sender@example.com",
		To:         "a@example.com",
		Subject:    "Test",
		HTML:       "<p>hi</p>",
		Text:       "hi",
		CampaignID: "cmp-1",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !strings.HasSuffix(captured.URL, "/emails") {
		t.Errorf("unexpected URL: %s", captured.URL)
	}
	if captured.Headers["Authorization"] != "Bearer re-key" {
		t.Errorf("unexpected auth header: %s", captured.Headers["Authorization"])
	}

	var payload resendPayload
	if err := json.Unmarshal(captured.Body, &payload); err != nil {
		t.Fatalf("request body not valid JSON: %v", err)
	}
	if len(payload.To) != 1 || payload.To[0] != "a@example.com" {
		t.Errorf("unexpected to field: %v", payload.To)
	}
	if len(payload.Tags) != 1 || payload.Tags[0].Value != "cmp-1" {
		t.Errorf("expected campaign id tag, got %v", payload.Tags)
	}
}

func TestResend_Send_RateLimitIsRetryable(t *testing.T) {
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return &HTTPResponse{StatusCode: 429, Body: []byte("too many requests")}, nil
		},
	}

	re := NewResend(Config{Type: "resend", APIKey: "re-key"}, client)
	err := re.Send(context.Background(), &Message{To: "a@example.com"})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !IsRetryable(err) {
		t.Error("expected 429 to be retryable")
	}
}

func TestResend_CampaignStats(t *testing.T) {
	body := `{"delivered_count":20,"opened_count":"8","clicked_count":3,"unsubscribed_count":1,"bounced_count":2}`
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			if !strings.HasSuffix(req.URL, "/broadcasts/cmp-1") {
				t.Errorf("unexpected URL: %s", req.URL)
			}
			return &HTTPResponse{StatusCode: 200, Body: []byte(body)}, nil
		},
	}

	re := NewResend(Config{Type: "resend", APIKey: "re-key"}, client)
	stats := re.CampaignStats(context.Background(), "cmp-1")

	if stats.Delivered != 20 {
		t.Errorf("expected delivered 20, got %d", stats.Delivered)
	}
	if stats.Opened != 8 {
		t.Errorf("expected opened 8 from string value, got %d", stats.Opened)
	}
	if stats.Unsubscribed != 1 {
		t.Errorf("expected unsubscribed 1, got %d", stats.Unsubscribed)
	}
}

func TestResend_CampaignStats_BadJSONYieldsZero(t *testing.T) {
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return &HTTPResponse{StatusCode: 200, Body: []byte("not json")}, nil
		},
	}

	re := NewResend(Config{Type: "resend", APIKey: "re-key"}, client)
	stats := re.CampaignStats(context.Background(), "cmp-1")
	if stats != (analytics.Stats{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}
