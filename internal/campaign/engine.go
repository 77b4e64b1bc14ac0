package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/clock"
	"github.com/dayeon/mailcast/internal/content"
	"github.com/dayeon/mailcast/internal/metrics"
	"github.com/dayeon/mailcast/internal/provider"
)

// DefaultBatchSize bounds how many recipients are sent concurrently within
// one campaign.
const DefaultBatchSize = 50

// Deliverer sends one fully rendered message, applying whatever retry and
// failover policy it carries.
type Deliverer interface {
	Deliver(ctx context.Context, msg *provider.Message) error
}

// SegmentResolver resolves a segment id to recipients and exposes the
// tenant's unsubscribe set.
type SegmentResolver interface {
	ResolveSegment(tenant, segmentID string) ([]string, error)
	UnsubscribedSet(tenant string) map[string]bool
}

// Engine drives campaign creation, the due-campaign sweep, and batched
// delivery.
type Engine struct {
	store      Store
	resolver   SegmentResolver
	deliverer  Deliverer
	renderer   *content.Renderer
	injector   *content.Injector
	clk        clock.Clock
	from       string
	batchSize  int
	batchDelay time.Duration

	// OnSent runs after a campaign is marked sent; used to push contacts
	// to provider-side marketing lists.
	OnSent func(tenant string, c Campaign)
}

// EngineConfig carries the engine's construction parameters.
type EngineConfig struct {
	Store      Store
	Resolver   SegmentResolver
	Deliverer  Deliverer
	Renderer   *content.Renderer
	Injector   *content.Injector
	Clock      clock.Clock
	From       string
	BatchSize  int
	BatchDelay time.Duration
}

// NewEngine creates an Engine. A non-positive batch size falls back to
// DefaultBatchSize.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Engine{
		store:      cfg.Store,
		resolver:   cfg.Resolver,
		deliverer:  cfg.Deliverer,
		renderer:   cfg.Renderer,
		injector:   cfg.Injector,
		clk:        cfg.Clock,
		from:       cfg.From,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
	}
}

// CreateCampaign validates and persists a new campaign. A segment is
// resolved immediately so resolution failures and empty segments surface to
// the caller, but the membership itself is resolved again at delivery time.
// A campaign that is already due is delivered within this call.
func (e *Engine) CreateCampaign(ctx context.Context, tenant string, c Campaign) (Campaign, error) {
	if err := ValidateTenant(tenant); err != nil {
		return Campaign{}, err
	}
	if err := c.Validate(); err != nil {
		return Campaign{}, err
	}

	if c.Segment != "" {
		emails, err := e.resolver.ResolveSegment(tenant, c.Segment)
		if err != nil {
			return Campaign{}, fmt.Errorf("resolve segment %q: %w", c.Segment, err)
		}
		if len(emails) == 0 {
			return Campaign{}, &ValidationError{Field: "segment", Reason: "resolved to zero recipients"}
		}
	}

	text, err := content.EnsureText(c.Body, c.Text)
	if err != nil {
		return Campaign{}, &ValidationError{Field: "body", Reason: "missing html content"}
	}
	c.Text = text

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := e.clk.Now()
	c.CreatedAt = now

	var deliveryErr error
	if c.Due(now) {
		deliveryErr = e.deliverCampaign(ctx, tenant, &c)
		sentAt := e.clk.Now()
		c.SentAt = &sentAt
	}

	existing, err := e.store.ReadCampaigns(tenant)
	if err != nil {
		return Campaign{}, err
	}
	if err := e.store.WriteCampaigns(tenant, append(existing, c)); err != nil {
		return Campaign{}, err
	}

	if c.SentAt != nil && deliveryErr == nil && e.OnSent != nil {
		e.OnSent(tenant, c)
	}
	return c, deliveryErr
}

// ListCampaigns is a passthrough read of a tenant's campaigns.
func (e *Engine) ListCampaigns(tenant string) ([]Campaign, error) {
	if err := ValidateTenant(tenant); err != nil {
		return nil, err
	}
	return e.store.ReadCampaigns(tenant)
}

// SendDueCampaigns sweeps every tenant and delivers each due campaign
// exactly once. A campaign is marked sent after all its recipients have
// been attempted, failures included, so repeated sweeps never resend.
// Tenant id validation failures abort the whole sweep; per-campaign
// delivery failures are collected into an AggregateDeliveryError.
func (e *Engine) SendDueCampaigns(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	shops, err := e.store.ListShops()
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var agg AggregateDeliveryError
	for _, tenant := range shops {
		if err := ValidateTenant(tenant); err != nil {
			return fmt.Errorf("sweep aborted: %w", err)
		}

		campaigns, err := e.store.ReadCampaigns(tenant)
		if err != nil {
			return fmt.Errorf("read campaigns for %s: %w", tenant, err)
		}

		anyDue := false
		for i := range campaigns {
			c := &campaigns[i]
			if !c.Due(e.clk.Now()) {
				continue
			}
			anyDue = true

			err := e.deliverCampaign(ctx, tenant, c)
			sentAt := e.clk.Now()
			c.SentAt = &sentAt

			if err != nil {
				agg.FailedIDs = append(agg.FailedIDs, c.ID)
				agg.Errs = append(agg.Errs, fmt.Errorf("campaign %s: %w", c.ID, err))
				continue
			}
			metrics.CampaignsDeliveredTotal.Inc()
			if e.OnSent != nil {
				e.OnSent(tenant, *c)
			}
		}

		if anyDue {
			if err := e.store.WriteCampaigns(tenant, campaigns); err != nil {
				return fmt.Errorf("persist campaigns for %s: %w", tenant, err)
			}
		}
	}

	if len(agg.FailedIDs) > 0 {
		return &agg
	}
	return nil
}

// deliverCampaign renders and sends one campaign to its recipients in
// concurrency-bounded batches. A segment campaign resolves its audience
// fresh at delivery time and the resolved list is written back onto the
// campaign, so the persisted record names who was addressed. The
// unsubscribe filter is best-effort; a campaign whose entire audience
// unsubscribed is attempted with zero sends and still counts as delivered.
func (e *Engine) deliverCampaign(ctx context.Context, tenant string, c *Campaign) error {
	if c.Segment != "" {
		resolved, err := e.resolver.ResolveSegment(tenant, c.Segment)
		if err != nil {
			return fmt.Errorf("resolve segment %q: %w", c.Segment, err)
		}
		c.Recipients = resolved
	}
	recipients := c.Recipients

	unsub := e.resolver.UnsubscribedSet(tenant)
	if len(unsub) > 0 {
		kept := make([]string, 0, len(recipients))
		for _, email := range recipients {
			if unsub[email] {
				metrics.RecipientsSkippedTotal.WithLabelValues("unsubscribed").Inc()
				continue
			}
			kept = append(kept, email)
		}
		recipients = kept
	}

	log.Info().
		Str("tenant", tenant).
		Str("campaign_id", c.ID).
		Int("recipients", len(recipients)).
		Msg("delivering campaign")

	var (
		mu     sync.Mutex
		errs   []error
		failed int
	)

	for batchStart := 0; batchStart < len(recipients); batchStart += e.batchSize {
		if batchStart > 0 && e.batchDelay > 0 {
			if err := e.clk.Sleep(ctx, e.batchDelay); err != nil {
				return err
			}
		}

		end := batchStart + e.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		var wg sync.WaitGroup
		for _, email := range recipients[batchStart:end] {
			wg.Add(1)
			go func(email string) {
				defer wg.Done()
				if err := e.sendOne(ctx, tenant, c, email); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", email, err))
					failed++
					mu.Unlock()
				}
			}(email)
		}
		wg.Wait()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d recipients failed: %w", failed, len(recipients), errs[0])
	}
	return nil
}

// sendOne renders the campaign for a single recipient and hands it to the
// delivery chain.
func (e *Engine) sendOne(ctx context.Context, tenant string, c *Campaign, email string) error {
	bindings := map[string]any{
		"email": email,
		"shop":  tenant,
	}

	html, err := e.renderer.Render(c.Body, bindings)
	if err != nil {
		return err
	}
	subject, err := e.renderer.Render(c.Subject, bindings)
	if err != nil {
		return err
	}

	if !c.RawHTML {
		html = content.Sanitize(html)
	}
	html = e.injector.Inject(html, tenant, c.ID, email)

	text, err := content.EnsureText(html, c.Text)
	if err != nil {
		return err
	}

	return e.deliverer.Deliver(ctx, &provider.Message{
		From:       e.from,
		To:         email,
		Subject:    subject,
		HTML:       html,
		Text:       text,
		CampaignID: c.ID,
	})
}
