package campaign

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/analytics"
	"github.com/dayeon/mailcast/internal/metrics"
	"github.com/dayeon/mailcast/internal/provider"
)

// StatsSyncer periodically pulls aggregate stats for every sent campaign
// and forwards the normalized numbers to the analytics sink.
type StatsSyncer struct {
	store    Store
	provider provider.Provider
	sink     analytics.Sink
}

// NewStatsSyncer creates a StatsSyncer reading through the given provider.
func NewStatsSyncer(store Store, p provider.Provider, sink analytics.Sink) *StatsSyncer {
	return &StatsSyncer{store: store, provider: p, sink: sink}
}

// Sync walks all sent campaigns per tenant. A stats fetch that fails
// substitutes the zero struct and the walk continues; only store access
// failures abort.
func (s *StatsSyncer) Sync(ctx context.Context) error {
	reader, _ := s.provider.(provider.StatsReader)
	if reader == nil {
		log.Debug().Str("provider", s.provider.Name()).Msg("provider exposes no stats, skipping sync")
		return nil
	}

	shops, err := s.store.ListShops()
	if err != nil {
		return fmt.Errorf("stats sync: list tenants: %w", err)
	}

	for _, tenant := range shops {
		campaigns, err := s.store.ReadCampaigns(tenant)
		if err != nil {
			return fmt.Errorf("stats sync: read campaigns for %s: %w", tenant, err)
		}

		for _, c := range campaigns {
			if c.SentAt == nil {
				continue
			}
			stats := reader.CampaignStats(ctx, c.ID)
			if err := s.sink.RecordStats(tenant, c.ID, stats); err != nil {
				metrics.StatsSyncFailuresTotal.Inc()
				log.Warn().Err(err).
					Str("tenant", tenant).
					Str("campaign_id", c.ID).
					Msg("analytics sink rejected stats")
			}
		}
	}
	return nil
}
