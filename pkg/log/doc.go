/*
Package log provides structured logging for riskfeed using zerolog.

The package wraps a global zerolog.Logger with component-scoped child loggers,
configurable levels and a choice of JSON or console output. Every long-lived
component (storage, synth, hub, feed, api) takes a child logger from
WithComponent at construction time so its lines can be filtered.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Unknown level names fall back to info. Output defaults to stdout.

# Component Loggers

	logger := log.WithComponent("feed")
	logger.Error().Err(err).Msg("synthesis cycle failed")

	subLog := log.WithSubscriberID(sub.ID())
	subLog.Debug().Msg("subscriber removed")

# Output

JSON:

	{"level":"info","component":"hub","subscriber_id":"7b0c...","time":"2026-10-18T10:30:00Z","message":"subscriber added"}

Console:

	2026-10-18T10:30:00Z INF subscriber added component=hub subscriber_id=7b0c...
*/
package log
