package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_fetches_total",
		Help: "Total number of cache fetches started, by key prefix",
	}, []string{"key"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of reads served from cached data",
	}, []string{"key"})

	CacheRefetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_refetches_total",
		Help: "Total number of background refetches triggered by invalidation",
	}, []string{"key"})

	CacheFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_fetch_errors_total",
		Help: "Total number of failed cache fetches",
	}, []string{"key"})

	SnapshotRestoresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_snapshot_restores_total",
		Help: "Total number of entries restored from the snapshot store",
	})

	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mutations_total",
		Help: "Total number of mutations by name and outcome",
	}, []string{"mutation", "outcome"})

	RemoteCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_call_latency_seconds",
		Help:    "Latency of remote service calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	RemoteCallErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_call_errors_total",
		Help: "Total number of failed remote service calls",
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	OrdersFulfilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_fulfilled_total",
		Help: "Total number of orders transitioned to completed by the fulfillment worker",
	})
)
