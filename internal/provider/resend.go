package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/analytics"
)

const (
	resendDefaultEndpoint = "https://api.resend.com"
	resendSendPath        = "/emails"
	resendBroadcastsPath  = "/broadcasts"
)

// Resend implements the Provider interface for the Resend API.
type Resend struct {
	apiKey   string
	endpoint string
	client   HTTPClient
}

// NewResend creates a Resend provider from the given configuration.
func NewResend(cfg Config, client HTTPClient) *Resend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = resendDefaultEndpoint
	}
	return &Resend{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   client,
	}
}

func (r *Resend) Name() string { return "resend" }

// resendPayload matches the Resend send-email JSON schema. The campaign id
// travels as a tag so webhook events can be correlated.
type resendPayload struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html,omitempty"`
	Text    string      `json:"text,omitempty"`
	Tags    []resendTag `json:"tags,omitempty"`
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Send delivers a message via the Resend email API.
func (r *Resend) Send(ctx context.Context, msg *Message) error {
	payload := resendPayload{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.CampaignID != "" {
		payload.Tags = []resendTag{{Name: "campaign_id", Value: msg.CampaignID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("resend: marshal request: %w", err)
	}

	resp, err := r.client.Do(ctx, &HTTPRequest{
		Method: "POST",
		URL:    r.endpoint + resendSendPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + r.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return NetworkError("resend", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return ClassifyHTTPError("resend", resp.StatusCode, string(resp.Body))
}

// CampaignStats fetches broadcast stats from Resend. Any failure yields
// zero stats.
func (r *Resend) CampaignStats(ctx context.Context, campaignID string) analytics.Stats {
	resp, err := r.client.Do(ctx, &HTTPRequest{
		Method: "GET",
		URL:    r.endpoint + resendBroadcastsPath + "/" + campaignID,
		Headers: map[string]string{
			"Authorization": "Bearer " + r.apiKey,
		},
	})
	if err != nil || resp.StatusCode != 200 {
		log.Warn().Err(err).Str("campaign_id", campaignID).Msg("resend stats fetch failed")
		return analytics.Stats{}
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		log.Warn().Err(err).Str("campaign_id", campaignID).Msg("resend stats parse failed")
		return analytics.Stats{}
	}
	return analytics.NormalizeStats("resend", raw)
}
