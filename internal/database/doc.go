// Package database provides the SQLite-backed export manifest.
//
// The manifest records every thread exported in previous runs together with
// its revision stamp. A resumed run consults it to skip threads that have
// not changed since they were last written, which matters a lot against an
// aggressively throttled API.
//
// Design decision: SQLite via modernc.org/sqlite because:
// 1. No external dependencies - the manifest is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode handles the exporter's concurrent workers
package database
