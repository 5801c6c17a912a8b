// Package main provides the entry point for the quip-export CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for quip-export.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quip-export",
		Short: "Export a Quip account to local files",
		Long: `quip-export downloads the complete content tree of a Quip account
(folders, documents, spreadsheets, attachments, and optionally comments)
to a local directory or zip archive, in HTML, DOCX, XLSX or PDF form.

An access token is required. Generate one at https://quip.com/dev/token
(or https://<your-domain>/dev/token for dedicated instances).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
