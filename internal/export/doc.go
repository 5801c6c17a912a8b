// Package export implements the export phase: fetching each discovered
// thread and rendering it to the configured output format.
//
// Threads are processed by a bounded worker pool. Every thread counts toward
// the processed total exactly once, whether it was exported, skipped as
// unchanged, or abandoned after a fetch failure, so the progress total always
// reaches the count established during analysis.
package export
