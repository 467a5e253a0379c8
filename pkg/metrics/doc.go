/*
Package metrics exposes riskfeed's Prometheus collectors and the process
health registry.

Collectors are registered on the default registry at init and served by
Handler on /metrics. They cover the synthesis feed (cycle outcomes and
duration), push delivery (subscriber gauge, delivered and dropped events),
the HTTP API (requests by route and status, latency) and the persisted
record counts refreshed by Collector.

These are process metrics. The dashboard metrics served on /api/metrics are
computed from the store by the aggregator package and are unrelated.

# Health

Components report their state with UpdateComponent. HealthHandler returns
503 when any component is unhealthy; ReadyHandler returns 503 until every
name in CriticalComponents has reported healthy.

	metrics.UpdateComponent(metrics.ComponentStorage, true, "")
	r.Get("/api/ready", metrics.ReadyHandler())

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CycleDuration)
*/
package metrics
