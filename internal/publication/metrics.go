package publication

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publication_passes_total",
		Help: "Total number of publication passes by outcome",
	}, []string{"outcome"})
	passesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publication_passes_skipped_total",
		Help: "Total number of scheduled passes skipped because another instance held the lease",
	})
	passDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "publication_pass_duration_seconds",
		Help:       "Duration of publication passes in seconds",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})

	eventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publication_events_published_total",
		Help: "Total number of domain events marked published",
	})
	eventFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publication_event_failures_total",
		Help: "Total number of failed event publication attempts by stage",
	}, []string{"stage"})
	poisonEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publication_poison_events_total",
		Help: "Total number of failed attempts of events past the poison threshold",
	})
)
