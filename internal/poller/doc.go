// Package poller implements the per-venue REST snapshot poller.
//
// Each Poller:
//   - Fetches the venue's full ticker snapshot on a fixed interval
//   - Bounds every request with a timeout, a retry budget with jittered
//     backoff, a per-venue rate limit, and a circuit breaker
//   - Parses via the venue adapter, validates each record, and writes
//     accepted tickers into the cache
//   - Reports success and failure to the health monitor; a failing venue
//     degrades alone and never blocks the others
package poller
