/*
Package scheduler drives the synthetic event feed.

A Scheduler fires a synthesis cycle on a fixed interval (8 seconds by
default). Each cycle writes a transaction and, depending on the drawn risk,
an alert and a case. When an alert is produced the scheduler hands it to the
publisher, which recomputes metrics and pushes both to connected clients.

	┌─────────────┐ tick ┌───────────┐ alert ┌──────────┐
	│  Scheduler  │─────▶│ Cycler    │──────▶│ Publisher│──▶ subscribers
	└─────────────┘      └───────────┘       └──────────┘

A failed cycle is logged and recorded in Status; the loop keeps running.
Pause skips ticks without stopping the loop. Stop is the cancellation
handle: it closes the loop and waits for a cycle in progress to finish.
*/
package scheduler
