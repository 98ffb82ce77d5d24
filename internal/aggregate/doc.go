// Package aggregate merges poll and push tickers into one coherent snapshot
// and fans it out to subscribers.
//
// The Aggregator is the single serialization point for push updates: one
// goroutine drains the subscriber queue, applies each tick, and rebuilds the
// merged view on demand. Pollers write the cache directly; the Aggregator
// reads it when building a snapshot, so the merged view always reflects both
// transports. Pairs with no fresh live entry are filled from the fallback
// synthesizer, keeping snapshot coverage complete across the configured
// venue and pair universe.
//
// The Broadcaster publishes snapshots on a fixed tick and opportunistically
// after each drained burst of push updates. Subscriber callbacks run
// isolated; a slow or panicking callback never stalls publishing.
package aggregate
