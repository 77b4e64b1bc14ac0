// Package campaign implements the scheduling and dispatch engine: campaign
// persistence, due-campaign sweeps, and batched delivery.
package campaign

import (
	"fmt"
	"strings"
	"time"
)

// Campaign is one scheduled or sent mailing for a tenant.
type Campaign struct {
	ID         string     `json:"id"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Text       string     `json:"text,omitempty"`
	Recipients []string   `json:"recipients,omitempty"`
	Segment    string     `json:"segment,omitempty"`
	SendAt     *time.Time `json:"sendAt,omitempty"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`

	// RawHTML disables body sanitization for trusted, pre-sanitized input.
	RawHTML bool `json:"rawHtml,omitempty"`
}

// Due reports whether the campaign should be delivered now. A campaign
// with no sendAt is due immediately; a sent campaign is never due again.
func (c *Campaign) Due(now time.Time) bool {
	if c.SentAt != nil {
		return false
	}
	return c.SendAt == nil || !c.SendAt.After(now)
}

// ValidationError reports a campaign or tenant field that failed
// validation. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the fields required before a campaign can be accepted.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return &ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Body) == "" {
		return &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if len(c.Recipients) == 0 && c.Segment == "" {
		return &ValidationError{Field: "recipients", Reason: "need recipients or a segment"}
	}
	return nil
}

const maxTenantLen = 128

// ValidateTenant rejects tenant identifiers that are empty, oversized, or
// carry path syntax. Tenant ids become directory names in the file store.
func ValidateTenant(tenant string) error {
	if tenant == "" {
		return &ValidationError{Field: "tenant", Reason: "must not be empty"}
	}
	if len(tenant) > maxTenantLen {
		return &ValidationError{Field: "tenant", Reason: fmt.Sprintf("longer than %d characters", maxTenantLen)}
	}
	if strings.ContainsAny(tenant, `/\`) || strings.Contains(tenant, "..") {
		return &ValidationError{Field: "tenant", Reason: "must not contain path separators"}
	}
	return nil
}

// AggregateDeliveryError reports the campaigns that failed during one
// sweep. Campaigns delivered before or after the failures stay persisted.
type AggregateDeliveryError struct {
	FailedIDs []string
	Errs      []error
}

func (e *AggregateDeliveryError) Error() string {
	return fmt.Sprintf("delivery failed for campaigns: %s", strings.Join(e.FailedIDs, ", "))
}

func (e *AggregateDeliveryError) Unwrap() []error { return e.Errs }
