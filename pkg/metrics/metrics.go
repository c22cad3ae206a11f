// Package metrics exposes concierge Prometheus metrics on a private registry.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concierge/pkg/bus"
)

// Metrics holds all concierge collectors. A private registry keeps repeated
// construction in tests free of duplicate-registration panics.
type Metrics struct {
	Registry *prometheus.Registry

	messages           *prometheus.CounterVec
	replies            *prometheus.CounterVec
	catalogUpdates     prometheus.Counter
	completions        *prometheus.CounterVec
	completionDuration prometheus.Histogram
	tokens             *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_messages_total",
				Help: "Inbound guest messages by channel.",
			},
			[]string{"channel"},
		),
		replies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_replies_total",
				Help: "Replies by flow and outcome.",
			},
			[]string{"flow", "status"},
		),
		catalogUpdates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "concierge_catalog_updates_total",
				Help: "Accepted catalog updates.",
			},
		),
		completions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_completions_total",
				Help: "LLM completions by outcome.",
			},
			[]string{"outcome"},
		),
		completionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "concierge_completion_duration_seconds",
				Help:    "LLM completion latency.",
				Buckets: prometheus.DefBuckets,
			},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_llm_tokens_total",
				Help: "LLM tokens consumed.",
			},
			[]string{"type"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveCompletion records one completion call. outcome is "ok" or the
// fallback category.
func (m *Metrics) ObserveCompletion(outcome string, d time.Duration, promptTokens, completionTokens int64) {
	m.completions.WithLabelValues(outcome).Inc()
	m.completionDuration.Observe(d.Seconds())
	if promptTokens > 0 {
		m.tokens.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.tokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

// Observe translates one bus event into counter updates.
func (m *Metrics) Observe(event bus.Event) {
	switch event.Type {
	case bus.EventMessageReceived:
		m.messages.WithLabelValues(event.Channel).Inc()
	case bus.EventReplySent:
		status := "ok"
		if fallback, _ := strconv.ParseBool(event.Payload[bus.PayloadFallback]); fallback {
			status = "fallback"
		}
		m.replies.WithLabelValues(event.Payload[bus.PayloadFlow], status).Inc()
	case bus.EventReplyFailed:
		m.replies.WithLabelValues(event.Payload[bus.PayloadFlow], "error").Inc()
	case bus.EventCatalogUpdated:
		m.catalogUpdates.Inc()
	}
}

// Consume observes events until the channel closes or ctx is done.
func (m *Metrics) Consume(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.Observe(event)
		}
	}
}
