// Package model defines the core data structures used throughout quip-export.
//
// This package contains the following main types:
//   - Folder: A container node in the Quip hierarchy with child references
//   - Thread: A Quip document or spreadsheet, the unit of export
//   - ThreadStub: The minimal thread record collected during analysis
//   - CrawlState: The deduplicated inventory built by the analysis phase
//   - Message: A comment attached to a thread
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (quip, crawler, export, report) need these
// types, so centralizing them prevents import cycles.
//
// The JSON tags mirror the Quip Automation API response shapes so the types
// can be unmarshalled directly from API payloads.
package model
