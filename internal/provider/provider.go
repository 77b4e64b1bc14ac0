// Package provider contains the transport abstraction for delivering
// campaign email through external providers.
package provider

import (
	"context"

	"github.com/dayeon/mailcast/internal/analytics"
)

// Provider defines the interface for sending campaign email through an ESP.
type Provider interface {
	// Name returns the provider's identifier (e.g., "sendgrid", "resend").
	Name() string
	// Send delivers a message through the provider. Failures are returned
	// as *ProviderError carrying retryability classification.
	Send(ctx context.Context, msg *Message) error
}

// StatsReader is an optional capability for providers that expose campaign
// aggregate statistics. Implementations never return an error; any fetch or
// parse failure yields the zero Stats.
type StatsReader interface {
	CampaignStats(ctx context.Context, campaignID string) analytics.Stats
}

// ContactManager is an optional capability for providers that maintain a
// contact database. Implementations never return an error.
type ContactManager interface {
	CreateContact(ctx context.Context, email string, attrs map[string]string)
	AddToList(ctx context.Context, listID, email string)
}

// SegmentLister is an optional capability for providers with server-side
// audience segments. Failures yield an empty slice, never an error.
type SegmentLister interface {
	ListSegments(ctx context.Context) []RemoteSegment
}

// RemoteSegment identifies an audience segment held by the provider.
type RemoteSegment struct {
	ID   string
	Name string
}

// HTTPClient abstracts HTTP operations for testability. The context bounds
// the whole exchange, so per-send timeouts and cancellation reach the wire.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest represents an outgoing HTTP request.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response from a provider API.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Message represents one email to one recipient, fully rendered.
type Message struct {
	From       string
	To         string
	Subject    string
	HTML       string
	Text       string
	CampaignID string
}
