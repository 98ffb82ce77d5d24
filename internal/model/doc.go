// Package model defines shared data types used across the price feed engine.
//
// Conventions:
//   - Pairs: canonical "BASE/QUOTE" form (e.g. "BTC/USDT")
//   - Prices: float64, always > 0 for a valid ticker
//   - Timestamps: time.Time, venue-reported when available, local receive time otherwise
package model
