// Package metrics provides Prometheus metrics for monitoring the engine.
//
// Key metrics:
//   - Ticks received, rejected (by reason), and published
//   - WebSocket reconnect attempts per venue
//   - Per-venue up/down state
//   - Fallback synthesis rate
package metrics
