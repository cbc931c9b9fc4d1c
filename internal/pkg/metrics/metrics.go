package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portfolio_aggregator"

var (
	// RefreshDuration observes the wall-clock time of a whole refresh pass.
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of portfolio refresh passes.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	})

	// RefreshTotal counts refresh passes by outcome ("ok" or "catastrophic").
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_total",
		Help:      "Refresh passes by outcome.",
	}, []string{"outcome"})

	// SourceFailures counts failed balance fetches.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Failed balance fetches by source label, category and policy.",
	}, []string{"source", "category", "policy"})

	// PriceCacheHits counts symbols served from the price cache.
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_cache_hits_total",
		Help:      "Symbols resolved from the price cache.",
	})

	// PriceFallbacks counts batches retried against the secondary price provider.
	PriceFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_fallbacks_total",
		Help:      "Price batches that fell back to the secondary provider.",
	})

	// PortfolioValueUSD is the total value of the last successful pass.
	PortfolioValueUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "portfolio_value_usd",
		Help:      "Total portfolio value in USD after dust filtering.",
	})
)
