// Package metrics exposes daemon counters on the admin /metrics
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set is the daemon's metric set, registered on its own registry so
// tests can create isolated instances.
type Set struct {
	Registry *prometheus.Registry

	PushEvents     *prometheus.CounterVec
	Ingested       prometheus.Counter
	Discarded      *prometheus.CounterVec
	Sends          *prometheus.CounterVec
	Uploads        *prometheus.CounterVec
	PagesFetched   prometheus.Counter
	Reconnects     prometheus.Counter
	StoredMessages prometheus.GaugeFunc
}

// New creates and registers the metric set. storedCount reports the
// total messages across all channel stores.
func New(storedCount func() float64) *Set {
	reg := prometheus.NewRegistry()

	s := &Set{
		Registry: reg,
		PushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convo_push_events_total",
			Help: "Push events received, by kind.",
		}, []string{"kind"}),
		Ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convo_messages_ingested_total",
			Help: "Messages upserted into channel stores.",
		}),
		Discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convo_events_discarded_total",
			Help: "Push events discarded because their target was absent.",
		}, []string{"kind"}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convo_sends_total",
			Help: "Send attempts, by result.",
		}, []string{"result"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convo_uploads_total",
			Help: "Attachment uploads, by result.",
		}, []string{"result"}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convo_pages_fetched_total",
			Help: "History pages fetched from the backend.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convo_push_reconnects_total",
			Help: "Push transport reconnect attempts.",
		}),
		StoredMessages: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "convo_stored_messages",
			Help: "Messages currently held across all channel stores.",
		}, storedCount),
	}

	reg.MustRegister(
		s.PushEvents, s.Ingested, s.Discarded, s.Sends,
		s.Uploads, s.PagesFetched, s.Reconnects, s.StoredMessages,
	)
	return s
}
