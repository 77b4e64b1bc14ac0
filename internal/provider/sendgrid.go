package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/analytics"
)

const (
	sendgridDefaultEndpoint = "https://api.sendgrid.com"
	sendgridSendPath        = "/v3/mail/send"
	sendgridStatsPath       = "/v3/categories/stats"
	sendgridContactsPath    = "/v3/marketing/contacts"
	sendgridSegmentsPath    = "/v3/marketing/segments/2.0"
)

// SendGrid implements the Provider interface for the SendGrid v3 API.
type SendGrid struct {
	apiKey   string
	endpoint string
	client   HTTPClient
}

// NewSendGrid creates a SendGrid provider from the given configuration.
func NewSendGrid(cfg Config, client HTTPClient) *SendGrid {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = sendgridDefaultEndpoint
	}
	return &SendGrid{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   client,
	}
}

func (s *SendGrid) Name() string { return "sendgrid" }

// Send delivers a message via the SendGrid v3 Mail Send API. The campaign id
// is attached as a category so webhook events and stats can be correlated.
func (s *SendGrid) Send(ctx context.Context, msg *Message) error {
	payload := s.buildPayload(msg)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sendgrid: marshal request: %w", err)
	}

	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: "POST",
		URL:    s.endpoint + sendgridSendPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return NetworkError("sendgrid", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return ClassifyHTTPError("sendgrid", resp.StatusCode, string(resp.Body))
}

// CampaignStats fetches aggregate stats for a campaign via the category
// stats endpoint. Any failure yields zero stats.
func (s *SendGrid) CampaignStats(ctx context.Context, campaignID string) analytics.Stats {
	q := url.Values{}
	q.Set("categories", campaignID)
	q.Set("aggregated_by", "month")

	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: "GET",
		URL:    s.endpoint + sendgridStatsPath + "?" + q.Encode(),
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
		},
	})
	if err != nil || resp.StatusCode != 200 {
		log.Warn().Err(err).Str("campaign_id", campaignID).Msg("sendgrid stats fetch failed")
		return analytics.Stats{}
	}

	// The stats endpoint returns date buckets, each with per-category
	// metrics. Sum across all buckets.
	var buckets []struct {
		Stats []struct {
			Metrics map[string]any `json:"metrics"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(resp.Body, &buckets); err != nil {
		log.Warn().Err(err).Str("campaign_id", campaignID).Msg("sendgrid stats parse failed")
		return analytics.Stats{}
	}

	var total analytics.Stats
	for _, b := range buckets {
		for _, st := range b.Stats {
			part := analytics.NormalizeStats("sendgrid", st.Metrics)
			total.Delivered += part.Delivered
			total.Opened += part.Opened
			total.Clicked += part.Clicked
			total.Unsubscribed += part.Unsubscribed
			total.Bounced += part.Bounced
		}
	}
	return total
}

// CreateContact upserts a contact into SendGrid's marketing contact store.
// Failures are logged and swallowed.
func (s *SendGrid) CreateContact(ctx context.Context, email string, attrs map[string]string) {
	contact := map[string]any{"email": email}
	for k, v := range attrs {
		contact[k] = v
	}
	body, err := json.Marshal(map[string]any{
		"contacts": []map[string]any{contact},
	})
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("sendgrid contact marshal failed")
		return
	}

	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: "PUT",
		URL:    s.endpoint + sendgridContactsPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("sendgrid contact upsert failed")
		return
	}
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("email", email).Msg("sendgrid contact upsert rejected")
	}
}

// AddToList places an existing contact on a marketing list. Failures are
// logged and swallowed.
func (s *SendGrid) AddToList(ctx context.Context, listID, email string) {
	body, err := json.Marshal(map[string]any{
		"list_ids": []string{listID},
		"contacts": []map[string]any{{"email": email}},
	})
	if err != nil {
		log.Warn().Err(err).Str("list_id", listID).Msg("sendgrid list add marshal failed")
		return
	}

	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: "PUT",
		URL:    s.endpoint + sendgridContactsPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		log.Warn().Err(err).Str("list_id", listID).Msg("sendgrid list add failed")
		return
	}
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("list_id", listID).Msg("sendgrid list add rejected")
	}
}

// ListSegments returns the provider-side marketing segments. Failures yield
// an empty slice.
func (s *SendGrid) ListSegments(ctx context.Context) []RemoteSegment {
	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: "GET",
		URL:    s.endpoint + sendgridSegmentsPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
		},
	})
	if err != nil || resp.StatusCode != 200 {
		log.Warn().Err(err).Msg("sendgrid segment list failed")
		return nil
	}

	var parsed struct {
		Results []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		log.Warn().Err(err).Msg("sendgrid segment list parse failed")
		return nil
	}

	segments := make([]RemoteSegment, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		segments = append(segments, RemoteSegment{ID: r.ID, Name: r.Name})
	}
	return segments
}

// sendgridPayload matches the SendGrid v3 mail/send JSON schema.
type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridEmail             `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
	Categories       []string                  `json:"categories,omitempty"`
}

type sendgridPersonalization struct {
	To []sendgridEmail `json:"to"`
}

type sendgridEmail struct {
	Email string `json:"email"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *SendGrid) buildPayload(msg *Message) sendgridPayload {
	// SendGrid requires text/plain before text/html.
	var content []sendgridContent
	if msg.Text != "" {
		content = append(content, sendgridContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		content = append(content, sendgridContent{Type: "text/html", Value: msg.HTML})
	}

	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{
			{To: []sendgridEmail{{Email: msg.To}}},
		},
		From:    sendgridEmail{Email: msg.From},
		Subject: msg.Subject,
		Content: content,
	}
	if msg.CampaignID != "" {
		payload.Categories = []string{msg.CampaignID}
	}
	return payload
}
