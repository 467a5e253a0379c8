/*
Package api serves the riskfeed HTTP API with a chi router.

Read endpoints are thin wrappers over query.Service:

	GET  /api/health              liveness, {"status":"ok","time":...}
	GET  /api/ready               readiness of storage, feed and api
	GET  /api/metrics             current dashboard metrics
	GET  /api/alerts?limit=N      newest alerts (default 10)
	GET  /api/cases               cases, most recently updated first
	GET  /api/cases/{id}          case with related alerts and transactions
	PATCH /api/cases/{id}         set {"status":...}; 400 for unknown statuses
	GET  /api/transactions?limit=N newest transactions (default 15)
	GET  /metrics                 Prometheus

Push endpoints subscribe to the events hub for the lifetime of the request:

	GET  /api/stream              Server-Sent Events
	GET  /api/ws                  WebSocket, {"event":...,"data":...} frames

Both transports start with a metrics event and then receive an alert event
followed by a metrics event for every new alert. Each write is bounded by the
write timeout; a failed write ends the stream and unregisters the subscriber.
New stream connections are rate limited per client IP.

When a feed controller is configured, /api/feed/status, /api/feed/pause,
/api/feed/resume and /api/feed/run expose it. A run while paused is a 409.
*/
package api
