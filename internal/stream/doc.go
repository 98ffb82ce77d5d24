// Package stream implements the per-venue push-feed subscriber.
//
// Each Subscriber:
//   - Owns one WebSocket connection to its venue
//   - Walks the Disconnected -> Connecting -> Connected lifecycle, scheduling
//     jittered exponential reconnects on every failure, forever
//   - Sends the venue-specific subscribe payload after each (re)connect
//   - Parses inbound frames via the venue adapter, validates them, and
//     enqueues accepted tickers for the aggregator
//   - Force-closes the connection when no frame arrives within the heartbeat
//     window, treating silence as a connection error
package stream
