// Package crawler implements the analysis phase: recursive discovery of the
// reachable folder/thread graph.
//
// The crawler expands folders breadth-first, fanning the fetches of each
// frontier out over a bounded number of goroutines. Folders and threads
// reachable through several parents are claimed in CrawlState before any
// fetch, so every node is requested exactly once regardless of how many
// parents link to it. An unreachable subtree is logged and skipped; it never
// aborts the crawl.
package crawler
