// Package report renders the post-run summary.
//
// The summary is written as Markdown so it can be dropped next to the export
// output or pasted into an issue. It records what was exported, what was
// skipped, and how many API calls the run cost, which is the number that
// matters when planning re-runs against the rate limit.
package report
