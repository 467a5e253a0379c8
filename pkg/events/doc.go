/*
Package events fans out live alert and metrics events to push subscribers.

A Hub keeps the set of connected subscribers. Each Subscription owns a
bounded channel; the HTTP layer drains it onto an SSE or WebSocket
connection.

	sub, err := hub.Subscribe()       // first event is a metrics snapshot
	defer hub.Unsubscribe(sub)
	for ev := range sub.Events() { ... }

PublishAlert takes one fresh metrics snapshot and queues the pair
(alert, metrics) on every subscriber. A pair is queued whole or not at
all, so a reader never sees an alert without its metrics update. Delivery
never blocks the publisher: a subscriber with a full buffer misses the
pair and stays connected, a closed subscriber is removed.
*/
package events
