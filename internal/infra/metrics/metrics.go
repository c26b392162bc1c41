// Package metrics holds the Prometheus instruments shared across the app.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redirects counts resolve outcomes: ok, stale_hit, gone, not_found.
	Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkmint",
		Name:      "redirects_total",
		Help:      "Redirect resolutions by outcome.",
	}, []string{"outcome"})

	// CacheLookups counts link cache lookups by result: hit, miss.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkmint",
		Name:      "cache_lookups_total",
		Help:      "Link cache lookups by result.",
	}, []string{"result"})

	// CleanupDeletions counts links reaped by the cleanup scheduler,
	// labelled by reason: expired, inactive.
	CleanupDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkmint",
		Name:      "cleanup_deletions_total",
		Help:      "Links deleted by the cleanup scheduler.",
	}, []string{"reason"})
)
