// Package venue implements per-venue adapters for external price sources.
//
// An Adapter:
//   - Normalizes venue symbol conventions into canonical "BASE/QUOTE" pairs
//   - Parses REST snapshot bodies and push frames into model.Ticker values
//   - Builds the venue-specific subscribe payload for push feeds
//
// Adapters are pure parsing/mapping code and never perform I/O, which keeps
// them unit-testable against captured sample payloads. A record that fails to
// parse is skipped; it never fails the batch.
package venue
