package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Links created, partitioned by how the short code was chosen (custom|generated)
	linksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_links_created_total",
			Help: "Total number of links created",
		},
		[]string{"code_source"},
	)

	// Unique-constraint collisions on insert
	shortCodeCollisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_short_code_collisions_total",
			Help: "Short code collisions detected by the store",
		},
		[]string{"code_source"},
	)

	linksDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_links_deleted_total",
			Help: "Delete requests partitioned by whether a row changed",
		},
		[]string{"result"},
	)

	// Click tracking outcomes (tracked|not_found|cached_miss|error)
	clicksTrackedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_clicks_total",
			Help: "Redirect attempts partitioned by outcome",
		},
		[]string{"result"},
	)

	analyticsFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_analytics_fallbacks_total",
			Help: "Analytics requests answered with a zero series after a store error",
		},
	)

	liveDashboardViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortlink_live_dashboard_viewers",
			Help: "Number of live dashboard sessions currently running",
		},
	)
)
