// Package main provides the entry point for the quip-export CLI.
//
// quip-export downloads the complete content tree of a Quip account
// (folders, documents, spreadsheets, attachments, and optionally comments)
// to a local directory or zip archive.
//
// Usage:
//
//	quip-export export --token <access-token>
//
// See --help for all available options.
package main

// main is the entry point for quip-export.
func main() {
	Execute()
}
