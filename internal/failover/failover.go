// Package failover walks the configured provider chain until one transport
// accepts the message.
package failover

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/clock"
	"github.com/dayeon/mailcast/internal/metrics"
	"github.com/dayeon/mailcast/internal/provider"
	"github.com/dayeon/mailcast/internal/retry"
)

// apiProviders is the fixed set of API-backed providers eligible for the
// chain, in default priority order. The SMTP relay is appended implicitly.
var apiProviders = []string{"sendgrid", "resend"}

// ErrUnsupportedProvider is returned at construction when the configured
// primary is not an API-backed provider.
var ErrUnsupportedProvider = fmt.Errorf("unsupported primary provider")

// Chain is an ordered provider sequence with per-provider retry. The primary
// goes first, remaining API providers follow, and the SMTP relay is the
// single-attempt last resort.
type Chain struct {
	providers   []provider.Provider
	relay       provider.Provider
	clk         clock.Clock
	maxAttempts int
}

// NewChain builds the failover chain for the given primary. Only providers
// actually present in the registry join the chain; a nil relay disables the
// last-resort hop. A primary of "smtp" builds a relay-only chain.
func NewChain(primary string, reg *provider.Registry, relay provider.Provider, clk clock.Clock, maxAttempts int) (*Chain, error) {
	c := &Chain{relay: relay, clk: clk, maxAttempts: maxAttempts}

	if primary == "smtp" {
		if relay == nil {
			return nil, fmt.Errorf("primary smtp requires a relay url")
		}
		return c, nil
	}

	supported := false
	for _, name := range apiProviders {
		if name == primary {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, primary)
	}

	order := []string{primary}
	for _, name := range apiProviders {
		if name != primary {
			order = append(order, name)
		}
	}

	for _, name := range order {
		p, err := reg.Get(name)
		if err != nil {
			continue
		}
		c.providers = append(c.providers, p)
	}
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no providers registered for chain starting at %s", primary)
	}
	return c, nil
}

// Deliver sends the message through the chain. Each API provider gets the
// full retry budget; exhaustion or a non-retryable rejection advances to the
// next hop. The relay gets exactly one attempt.
func (c *Chain) Deliver(ctx context.Context, msg *provider.Message) error {
	var lastErr error
	for i, p := range c.providers {
		lastErr = retry.Send(ctx, c.clk, p, msg, c.maxAttempts)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if i < len(c.providers)-1 || c.relay != nil {
			metrics.FailoversTotal.WithLabelValues(p.Name()).Inc()
			log.Warn().
				Err(lastErr).
				Str("provider", p.Name()).
				Str("recipient", msg.To).
				Str("campaign_id", msg.CampaignID).
				Msg("provider failed, trying next in chain")
		}
	}

	if c.relay != nil {
		lastErr = retry.Send(ctx, c.clk, c.relay, msg, 1)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
