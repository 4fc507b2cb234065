// Package metrics registers Prometheus instrumentation for the dashboard.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "energy_dashboard_"

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	fetchTotal   *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	wsClients   prometheus.Gauge
	reportsSent *prometheus.CounterVec

	lastTotalKWh  prometheus.Gauge
	lastTotalCost prometheus.Gauge
)

// Init registers all metrics once. Safe to call repeatedly.
func Init() {
	registerOnce.Do(func() {
		fetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_total",
				Help: "Upstream fetches by source and result",
			},
			[]string{"source", "result"},
		)
		fetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Upstream fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		cacheHits = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_requests_total",
				Help: "Cache lookups by outcome",
			},
			[]string{"outcome"},
		)
		wsClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ws_clients",
				Help: "Connected live-update WebSocket clients",
			},
		)
		reportsSent = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reports_sent_total",
				Help: "Weekly reports sent by result",
			},
			[]string{"result"},
		)
		lastTotalKWh = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "today_total_kwh",
				Help: "Today's total consumption from the latest refresh",
			},
		)
		lastTotalCost = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "today_total_cost_dollars",
				Help: "Today's total cost from the latest refresh",
			},
		)

		prometheus.MustRegister(
			fetchTotal, fetchLatency, cacheHits, wsClients,
			reportsSent, lastTotalKWh, lastTotalCost,
		)
	})
}

// ObserveFetch records one upstream fetch.
func ObserveFetch(source string, start time.Time, err error) {
	if fetchTotal == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	fetchTotal.WithLabelValues(source, result).Inc()
	fetchLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// ObserveCache records one cache lookup.
func ObserveCache(hit bool) {
	if cacheHits == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheHits.WithLabelValues(outcome).Inc()
}

// SetWSClients tracks the live client count.
func SetWSClients(n int) {
	if wsClients != nil {
		wsClients.Set(float64(n))
	}
}

// ObserveReport records one weekly report delivery attempt.
func ObserveReport(err error) {
	if reportsSent == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	reportsSent.WithLabelValues(result).Inc()
}

// SetTodayTotals exposes the latest refresh rollup.
func SetTodayTotals(kwh, cost float64) {
	if lastTotalKWh != nil {
		lastTotalKWh.Set(kwh)
		lastTotalCost.Set(cost)
	}
}
