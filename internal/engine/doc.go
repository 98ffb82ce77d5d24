// Package engine assembles the full price feed: venue adapters, cache,
// validator, fallback synthesizer, per-venue pollers and stream subscribers,
// the aggregator, broadcaster, and health monitor.
//
// Engine is the only surface the rest of a system consumes: Start/Stop for
// lifecycle, Subscribe for push-style snapshots, GetPairPrice and
// GetLastSnapshot for pull-style reads. Configuration problems surface as
// errors from New, before any goroutine is spawned.
package engine
