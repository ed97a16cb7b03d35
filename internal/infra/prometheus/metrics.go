package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes used as the "outcome" label.
const (
	OutcomeRedirected = "redirected"
	OutcomeNotFound   = "not_found"
	OutcomeExpired    = "expired"
	OutcomeError      = "error"
)

var (
	LinksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snaplink",
		Name:      "links_created_total",
		Help:      "Short links created, by code origin (custom or generated).",
	}, []string{"origin"})

	BatchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snaplink",
		Name:      "batches_rejected_total",
		Help:      "Create batches aborted before any write.",
	}, []string{"reason"})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snaplink",
		Name:      "resolutions_total",
		Help:      "Short code resolutions by outcome.",
	}, []string{"outcome"})

	AllocationAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "snaplink",
		Name:      "allocation_attempts",
		Help:      "Candidates drawn per generated code.",
		Buckets:   []float64{1, 2, 3, 5, 10, 50, 100, 1000},
	})

	ClicksStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snaplink",
		Name:      "clicks_streamed_total",
		Help:      "Click notices read back from the click stream.",
	})

	StreamedClicksByLocation = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snaplink",
		Name:      "streamed_clicks_by_location_total",
		Help:      "Click notices read back from the click stream, by coarse location.",
	}, []string{"location"})
)
