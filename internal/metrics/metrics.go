// Package metrics exposes Prometheus counters for campaign sends and
// tracking events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EmailsSent counts emails accepted by the transport.
	EmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtrack_emails_sent_total",
		Help: "Number of campaign emails successfully handed to the transport.",
	})

	// SendFailures counts per-recipient send pipeline failures.
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtrack_send_failures_total",
		Help: "Number of per-recipient send failures (register, render or transport).",
	})

	// OpensRecorded counts open events written to the store.
	OpensRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtrack_opens_recorded_total",
		Help: "Number of open events recorded.",
	})

	// ClicksRecorded counts click events written to the store.
	ClicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtrack_clicks_recorded_total",
		Help: "Number of click events recorded.",
	})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
