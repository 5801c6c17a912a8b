package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "quip-export"

	// ExportRootDir is the directory created under the destination that
	// holds the exported tree, and the base name of the archive when
	// zipping. Archive entries are stored without a root prefix.
	ExportRootDir = "quip-export"

	// DefaultDestination places the export under the current directory.
	DefaultDestination = "."

	// DefaultConcurrency bounds concurrent folder fetches during analysis
	// and concurrent thread exports. The server throttle is the real
	// bottleneck, so a moderate fan-out is enough.
	DefaultConcurrency = 10

	// DefaultRequestInterval disables the client-side politeness limiter.
	// The server's own throttle signals are always honored regardless.
	DefaultRequestInterval = 0 * time.Second
)

// Format selects the base output format. Exactly one may be chosen; the
// default is HTML.
type Format string

// Supported base output formats.
const (
	FormatHTML Format = "html"
	FormatDocx Format = "docx"
	FormatPDF  Format = "pdf"
)

// Config holds all configuration options for an export run.
// This struct is populated from CLI flags and the optional config file and
// passed through the application via dependency injection rather than
// global state.
//
// Design decision: We use a single flat struct instead of nested structs.
// The number of options is manageable, and nesting would add complexity
// without significant benefit.
type Config struct {
	// Token is the personal access token. Required.
	Token string

	// BaseDomain is the service domain, e.g. "quip.com" for the public
	// instance or a dedicated-instance domain. Empty selects the public
	// instance.
	BaseDomain string

	// Destination is the directory the export is written under. The tree
	// itself lands in Destination/quip-export, or in a zip archive at
	// Destination/quip-export.zip when Zip is set.
	Destination string

	// Zip writes a single archive instead of a directory tree.
	Zip bool

	// Format is the base output format. Spreadsheets always export as
	// XLSX regardless.
	Format Format

	// EmbedStyles inlines the stylesheet into every HTML document instead
	// of linking a shared document.css.
	EmbedStyles bool

	// EmbedImages inlines blob references as data URIs instead of writing
	// blob files next to the documents.
	EmbedImages bool

	// Comments appends thread comments to HTML output.
	Comments bool

	// TitlePrefix is prepended to each exported document's title on the
	// server after a successful export. Empty disables the edit.
	TitlePrefix string

	// Lock disables further edits on each thread after a successful
	// export.
	Lock bool

	// Folders is an explicit list of seed folder IDs. Empty means the
	// account's root folders.
	Folders []string

	// Concurrency bounds concurrent API operations per phase.
	Concurrency int

	// Resume consults the export manifest and skips threads unchanged
	// since the previous run.
	Resume bool

	// RequestInterval spaces outgoing requests at least this far apart.
	// Zero disables the politeness limiter.
	RequestInterval time.Duration

	// Debug enables detailed log output using slog.LevelDebug.
	Debug bool

	// ConfigFilePath is the path to the configuration file. If empty, the
	// tool searches for .quip-export in the current directory and then in
	// the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Destination:     DefaultDestination,
		Format:          FormatHTML,
		Concurrency:     DefaultConcurrency,
		RequestInterval: DefaultRequestInterval,
	}
}

// XDGDataDir returns the XDG data directory where the export manifest
// lives. On Linux: ~/.local/share/quip-export.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
// On Linux: ~/.config/quip-export.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront. The
// first error found is returned; fixing one error often makes others
// irrelevant.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}

	switch c.Format {
	case FormatHTML, FormatDocx, FormatPDF:
	default:
		return ErrInvalidFormat
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestInterval < 0 {
		return ErrInvalidRequestInterval
	}

	// Comments only exist in the HTML rendering; rejecting the combination
	// here surfaces the limitation instead of silently dropping them.
	if c.Comments && c.Format != FormatHTML {
		return ErrCommentsRequireHTML
	}

	if c.EmbedImages && c.Format != FormatHTML {
		return ErrImagesRequireHTML
	}

	return nil
}
