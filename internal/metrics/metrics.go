package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scanbridge_token_requests_total",
		Help: "Token manager lookups by outcome (hit, refresh, error).",
	}, []string{"outcome"})

	DirectoryRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scanbridge_directory_rebuilds_total",
		Help: "Location directory rebuild attempts by outcome (success, error).",
	}, []string{"outcome"})

	DirectoryServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scanbridge_directory_serves_total",
		Help: "Location directory reads by source (fresh, rebuilt, stale, fallback).",
	}, []string{"source"})

	RelocateItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scanbridge_relocate_items_total",
		Help: "Barcode relocation items by outcome (success, failed).",
	}, []string{"outcome"})
)
