package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// mockHTTPClient is a flexible mock for HTTP tests.
type mockHTTPClient struct {
	doFn func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

func (m *mockHTTPClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return m.doFn(ctx, req)
}

func TestSendGrid_buildPayload_HTMLAndText(t *testing.T) {
	sg := &SendGrid{}
	msg := &Message{
		From:       "sender@example.com",
		To:         "a@example.com",
		Subject:    "Test",
		Text:       "text part",
		HTML:       "<h1>Hello</h1>",
		CampaignID: "cmp-1",
	}

	payload := sg.buildPayload(msg)

	if len(payload.Content) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(payload.Content))
	}
	// First should be text/plain, second text/html.
	if payload.Content[0].Type != "text/plain" {
		t.Errorf("expected first content text/plain, got %s", payload.Content[0].Type)
	}
	if payload.Content[1].Type != "text/html" {
		t.Errorf("expected second content text/html, got %s", payload.Content[1].Type)
	}
	if len(payload.Categories) != 1 || payload.Categories[0] != "cmp-1" {
		t.Errorf("expected campaign id category, got %v", payload.Categories)
	}
	if len(payload.Personalizations) != 1 || payload.Personalizations[0].To[0].Email != "a@example.com" {
		t.Errorf("unexpected personalizations: %+v", payload.Personalizations)
	}
}

func TestSendGrid_Send_Success(t *testing.T) {
	var captured *HTTPRequest
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			captured = req
			return &HTTPResponse{StatusCode: 202}, nil
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	err := sg.Send(context.Background(), &Message{
		From:    "sender@example.com",
		To:      "a@example.com",
		Subject: "Test",
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !strings.HasSuffix(captured.URL, "/v3/mail/send") {
		t.Errorf("unexpected URL: %s", captured.URL)
	}
	if captured.Headers["Authorization"] != "Bearer sg-key" {
		t.Errorf("unexpected auth header: %s", captured.Headers["Authorization"])
	}

	var payload sendgridPayload
	if err := json.Unmarshal(captured.Body, &payload); err != nil {
		t.Fatalf("request body not valid JSON: %v", err)
	}
	if payload.Subject != "Test" {
		t.Errorf("expected subject Test, got %s", payload.Subject)
	}
}

func TestSendGrid_Send_PropagatesContext(t *testing.T) {
	var got context.Context
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			got = ctx
			return &HTTPResponse{StatusCode: 202}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	sg.Send(ctx, &Message{To: "a@example.com"})

	if got == nil || got.Err() == nil {
		t.Error("expected caller context to reach the HTTP client")
	}
}

func TestSendGrid_Send_ClassifiesAPIError(t *testing.T) {
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return &HTTPResponse{StatusCode: 400, Body: []byte("bad request")}, nil
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	err := sg.Send(context.Background(), &Message{To: "a@example.com"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if IsRetryable(err) {
		t.Error("expected 400 to be non-retryable")
	}
}

func TestSendGrid_Send_NetworkErrorIsRetryable(t *testing.T) {
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	err := sg.Send(context.Background(), &Message{To: "a@example.com"})
	if err == nil {
		t.Fatal("expected error for network failure")
	}
	if !IsRetryable(err) {
		t.Error("expected network failure to be retryable")
	}
}

func TestSendGrid_CampaignStats_SumsBuckets(t *testing.T) {
	body := `[
		{"date":"2026-07-01","stats":[{"metrics":{"delivered":10,"unique_opens":4,"unique_clicks":2,"unsubscribes":1,"bounces":0}}]},
		{"date":"2026-08-01","stats":[{"metrics":{"delivered":"5","unique_opens":"1","unique_clicks":0,"unsubscribes":0,"bounces":1}}]}
	]`
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			if !strings.Contains(req.URL, "categories=cmp-1") {
				t.Errorf("expected campaign id in query, got %s", req.URL)
			}
			return &HTTPResponse{StatusCode: 200, Body: []byte(body)}, nil
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	stats := sg.CampaignStats(context.Background(), "cmp-1")

	if stats.Delivered != 15 {
		t.Errorf("expected delivered 15, got %d", stats.Delivered)
	}
	if stats.Opened != 5 {
		t.Errorf("expected opened 5, got %d", stats.Opened)
	}
	if stats.Clicked != 2 {
		t.Errorf("expected clicked 2, got %d", stats.Clicked)
	}
	if stats.Bounced != 1 {
		t.Errorf("expected bounced 1, got %d", stats.Bounced)
	}
}

func TestSendGrid_CampaignStats_FailureYieldsZero(t *testing.T) {
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return nil, errors.New("timeout")
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	stats := sg.CampaignStats(context.Background(), "cmp-1")

	if stats.Delivered != 0 || stats.Opened != 0 || stats.Clicked != 0 {
		t.Errorf("expected zero stats on failure, got %+v", stats)
	}
}

func TestSendGrid_CreateContact_SwallowsFailure(t *testing.T) {
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return &HTTPResponse{StatusCode: 500, Body: []byte("oops")}, nil
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	// Must not panic or surface the failure.
	sg.CreateContact(context.Background(), "a@example.com", map[string]string{"first_name": "Ada"})
}

func TestSendGrid_ListSegments(t *testing.T) {
	body := `{"results":[{"id":"seg-1","name":"vips"},{"id":"seg-2","name":"churned"}]}`
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return &HTTPResponse{StatusCode: 200, Body: []byte(body)}, nil
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	segments := sg.ListSegments(context.Background())

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].ID != "seg-1" || segments[0].Name != "vips" {
		t.Errorf("unexpected first segment: %+v", segments[0])
	}
}

func TestSendGrid_ListSegments_FailureYieldsEmpty(t *testing.T) {
	client := &mockHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return &HTTPResponse{StatusCode: 401, Body: []byte("unauthorized")}, nil
		},
	}

	sg := NewSendGrid(Config{Type: "sendgrid", APIKey: "sg-key"}, client)
	if segments := sg.ListSegments(context.Background()); len(segments) != 0 {
		t.Errorf("expected empty segment list on failure, got %v", segments)
	}
}
