package analytics

import (
	"github.com/rs/zerolog"
)

// Sink receives normalized analytics records. Implementations decide where
// they land; the dispatcher only guarantees normalization.
type Sink interface {
	RecordEvent(tenant string, ev Event) error
	RecordStats(tenant, campaignID string, s Stats) error
}

// LogSink writes normalized records to the structured log. It is the
// default sink when no downstream pipeline is configured.
type LogSink struct {
	Log zerolog.Logger
}

func (s *LogSink) RecordEvent(tenant string, ev Event) error {
	s.Log.Info().
		Str("tenant", tenant).
		Str("event", string(ev.Type)).
		Str("campaign_id", ev.CampaignID).
		Str("recipient", ev.Recipient).
		Str("message_id", ev.MessageID).
		Msg("analytics event")
	return nil
}

func (s *LogSink) RecordStats(tenant, campaignID string, st Stats) error {
	s.Log.Info().
		Str("tenant", tenant).
		Str("campaign_id", campaignID).
		Int("delivered", st.Delivered).
		Int("opened", st.Opened).
		Int("clicked", st.Clicked).
		Int("unsubscribed", st.Unsubscribed).
		Int("bounced", st.Bounced).
		Msg("campaign stats")
	return nil
}
