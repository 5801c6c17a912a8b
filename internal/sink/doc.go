// Package sink abstracts where exported files end up.
//
// The exporter produces (folder path, file name, bytes) triples and does not
// care whether they land in a directory tree or a zip archive. Both sinks
// sanitize path components for portability and de-duplicate colliding file
// names, since distinct threads may share a title within one folder.
package sink
