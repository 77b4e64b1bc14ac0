// Package api exposes the HTTP surface: provider webhook ingestion, health,
// and metrics.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/analytics"
	"github.com/dayeon/mailcast/internal/metrics"
)

const maxWebhookBody = 1 << 20

// Server routes webhook traffic to the analytics sink.
type Server struct {
	sink analytics.Sink
}

// NewServer creates a Server forwarding normalized events to sink.
func NewServer(sink analytics.Sink) *Server {
	return &Server{sink: sink}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Post("/webhooks/{provider}", s.handleWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// handleWebhook accepts a provider webhook delivery. The body may be a
// single event object or an array of them; unknown event types are counted
// and dropped without erroring, so providers never see retry storms.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	// The tenant travels as a query parameter set when the webhook was
	// registered with the provider.
	tenant := r.URL.Query().Get("shop")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	payloads, err := decodePayloads(body)
	if err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, payload := range payloads {
		ev, ok := analytics.NormalizeWebhook(providerName, payload)
		if !ok {
			metrics.WebhookEventsTotal.WithLabelValues(providerName, "ignored").Inc()
			continue
		}
		metrics.WebhookEventsTotal.WithLabelValues(providerName, string(ev.Type)).Inc()
		if err := s.sink.RecordEvent(tenant, ev); err != nil {
			log.Warn().Err(err).
				Str("provider", providerName).
				Str("event", string(ev.Type)).
				Msg("analytics sink rejected event")
			continue
		}
		accepted++
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
}

// decodePayloads parses either one JSON object or an array of objects.
func decodePayloads(body []byte) ([]map[string]any, error) {
	var many []map[string]any
	if err := json.Unmarshal(body, &many); err == nil {
		return many, nil
	}

	var one map[string]any
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	return []map[string]any{one}, nil
}
