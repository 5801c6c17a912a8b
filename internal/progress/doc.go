// Package progress carries phase transitions and progress snapshots from the
// crawl/export core to a presentation layer.
//
// The core emits events into a Tracker channel instead of invoking callbacks
// inline. This keeps the state machine testable without a terminal and lets
// the CLI render progress however it likes (spinner, bar, plain log lines).
package progress
