package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quip-export/quip-export/internal/config"
	"github.com/quip-export/quip-export/internal/crawler"
	"github.com/quip-export/quip-export/internal/database"
	"github.com/quip-export/quip-export/internal/export"
	"github.com/quip-export/quip-export/internal/log"
	"github.com/quip-export/quip-export/internal/progress"
	"github.com/quip-export/quip-export/internal/quip"
	"github.com/quip-export/quip-export/internal/report"
	"github.com/quip-export/quip-export/internal/sink"
)

// reportFileName is the Markdown run report written into the destination
// directory after every run.
const reportFileName = "export-report.md"

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the account content tree to local files",
		Long: `Export walks every folder reachable from the account (or from the given
seed folders) and downloads each document, spreadsheet and slide deck
together with its attachments.

Examples:
  # Export the whole account as HTML into ./quip-export
  quip-export export --token <access-token>

  # Export a dedicated instance as DOCX into a zip archive
  quip-export export --token <t> --domain quip-acme.com --format docx --zip

  # Export two folders, embedding images, with comments
  quip-export export --token <t> --folders FOLDER1,FOLDER2 --embed-images --comments

  # Incremental re-run that skips unchanged documents
  quip-export export --token <t> --resume

Configuration file (.quip-export) example:
  token: "..."
  domain: quip-acme.com
  destination: /backups
  titlePrefix: "[archived] "
  requestInterval: 500ms`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	// Connection flags
	cmd.Flags().StringP("token", "t", "", "Personal access token (see https://quip.com/dev/token)")
	cmd.Flags().String("domain", "", "Service domain for dedicated instances (default: quip.com)")
	cmd.Flags().Duration("request-interval", config.DefaultRequestInterval,
		"Minimum spacing between API requests (0 disables)")

	// Output flags
	cmd.Flags().StringP("destination", "d", config.DefaultDestination,
		"Directory the export is written under")
	cmd.Flags().BoolP("zip", "z", false, "Write a single zip archive instead of a directory tree")
	cmd.Flags().StringP("format", "f", string(config.FormatHTML),
		"Base output format: html, docx or pdf (spreadsheets always export as xlsx)")
	cmd.Flags().Bool("embed-styles", false, "Inline the stylesheet into every HTML document")
	cmd.Flags().Bool("embed-images", false, "Inline images as data URIs instead of blob files")
	cmd.Flags().Bool("comments", false, "Append thread comments to HTML output")

	// Scope flags
	cmd.Flags().StringSlice("folders", nil,
		"Seed folder IDs to export (default: the account's root folders)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of concurrent API operations per phase")
	cmd.Flags().BoolP("resume", "r", false,
		"Skip threads unchanged since the previous run")

	// Post-export mutation flags
	cmd.Flags().String("title-prefix", "",
		"Prefix prepended to each exported document's title on the server")
	cmd.Flags().Bool("lock", false, "Disable further edits on each thread after export")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .quip-export in current or home directory)")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// The logger masks the access token and other credentials even in
	// debug output.
	logger := log.NewSecureLogger(os.Stderr, cfg.Debug)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runExport(ctx, cfg, logger)
}

// getDebugFlag retrieves the debug flag from the command or its parent.
func getDebugFlag(cmd *cobra.Command) bool {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		debug, err = cmd.Root().PersistentFlags().GetBool("debug")
		if err != nil {
			return false
		}
	}
	return debug
}

// buildConfig creates a Config from cobra command flags and the optional
// configuration file. Flags win over file values.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Token, err = cmd.Flags().GetString("token")
	if err != nil {
		return nil, err
	}

	cfg.BaseDomain, err = cmd.Flags().GetString("domain")
	if err != nil {
		return nil, err
	}

	cfg.RequestInterval, err = cmd.Flags().GetDuration("request-interval")
	if err != nil {
		return nil, err
	}

	cfg.Destination, err = cmd.Flags().GetString("destination")
	if err != nil {
		return nil, err
	}

	cfg.Zip, err = cmd.Flags().GetBool("zip")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}
	cfg.Format = config.Format(format)

	cfg.EmbedStyles, err = cmd.Flags().GetBool("embed-styles")
	if err != nil {
		return nil, err
	}

	cfg.EmbedImages, err = cmd.Flags().GetBool("embed-images")
	if err != nil {
		return nil, err
	}

	cfg.Comments, err = cmd.Flags().GetBool("comments")
	if err != nil {
		return nil, err
	}

	cfg.Folders, err = cmd.Flags().GetStringSlice("folders")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Resume, err = cmd.Flags().GetBool("resume")
	if err != nil {
		return nil, err
	}

	cfg.TitlePrefix, err = cmd.Flags().GetString("title-prefix")
	if err != nil {
		return nil, err
	}

	cfg.Lock, err = cmd.Flags().GetBool("lock")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.Debug = getDebugFlag(cmd)

	// Load the optional config file. An explicitly specified path must
	// exist; the default search may come up empty.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Apply(cf)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	return cfg, nil
}

// runExport executes the export run end to end: token check, analysis,
// export, and the closing report.
func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startedAt := time.Now()

	client := newAPIClient(cfg, logger)

	if err := client.CheckUser(ctx); err != nil {
		color.Red("Token verification failed: %v", err)
		fmt.Fprintf(os.Stderr, "Generate an access token at https://%s/dev/token\n", tokenHost(cfg.BaseDomain))
		return fmt.Errorf("verify access token: %w", err)
	}

	out, destination, err := newSink(cfg)
	if err != nil {
		return err
	}

	exportOpts := []export.Option{
		export.WithLogger(logger),
		export.WithConcurrency(cfg.Concurrency),
		export.WithFormat(export.Format(string(cfg.Format))),
		export.WithEmbeddedStyles(cfg.EmbedStyles),
		export.WithEmbeddedImages(cfg.EmbedImages),
		export.WithComments(cfg.Comments),
		export.WithTitlePrefix(cfg.TitlePrefix),
		export.WithLock(cfg.Lock),
	}

	// The manifest only exists for resumable runs. It lives under the XDG
	// data directory so it survives across destinations.
	var manifest *database.ExportDB
	if cfg.Resume {
		manifest, err = database.Open(config.XDGDataDir(), database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open export manifest: %w", err)
		}
		defer manifest.Close()
		exportOpts = append(exportOpts, export.WithManifest(manifest))
		logger.Debug("export manifest opened", "dir", config.XDGDataDir())
	}

	tracker := progress.NewTracker()
	rendered := renderEvents(tracker.Events())
	exportOpts = append(exportOpts, export.WithTracker(tracker))

	tracker.StartPhase(progress.PhaseStart)

	tracker.StartPhase(progress.PhaseAnalysis)
	c := crawler.New(client,
		crawler.WithLogger(logger),
		crawler.WithTracker(tracker),
		crawler.WithConcurrency(cfg.Concurrency),
	)
	state, err := c.Crawl(ctx, cfg.Folders)
	if err != nil {
		tracker.Close()
		<-rendered
		return fmt.Errorf("analysis failed: %w", err)
	}

	tracker.StartPhase(progress.PhaseExport)
	e := export.New(client, out, exportOpts...)
	summary, err := e.Export(ctx, state)
	if err != nil {
		tracker.Close()
		<-rendered
		return fmt.Errorf("export failed: %w", err)
	}

	tracker.StartPhase(progress.PhaseStop)
	tracker.Close()
	<-rendered

	if err := out.Close(); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}

	stats := client.Stats().Snapshot()
	logger.Debug("api call statistics", "total", stats.Queries)

	run := &report.RunReport{
		BaseDomain:   tokenHost(cfg.BaseDomain),
		Destination:  destination,
		Format:       string(cfg.Format),
		StartedAt:    startedAt,
		Duration:     time.Since(startedAt),
		FoldersTotal: state.FoldersTotal(),
		ThreadsTotal: state.ThreadsTotal(),
		Exported:     summary.Exported,
		Resumed:      summary.Resumed,
		Skipped:      summary.Skipped,
		Failed:       summary.Failed,
		APICalls:     stats,
	}
	if err := writeReport(cfg.Destination, run); err != nil {
		logger.Error("failed to write run report", "error", err)
	}

	color.Green("Export completed in %s: %d exported, %d unchanged, %d skipped, %d unavailable",
		run.Duration.Round(time.Second), summary.Exported, summary.Resumed, summary.Skipped, summary.Failed)
	fmt.Printf("Output: %s\n", destination)

	return nil
}

// newAPIClient builds the API client from the configuration.
func newAPIClient(cfg *config.Config, logger *slog.Logger) *quip.Client {
	opts := []quip.Option{
		quip.WithLogger(logger),
	}
	if cfg.RequestInterval > 0 {
		opts = append(opts, quip.WithRequestInterval(cfg.RequestInterval))
	}
	return quip.NewClient(cfg.Token, cfg.BaseDomain, opts...)
}

// newSink builds the output sink and returns it together with a
// human-readable description of where the export lands.
func newSink(cfg *config.Config) (sink.Sink, string, error) {
	if cfg.Zip {
		path := filepath.Join(cfg.Destination, config.ExportRootDir+".zip")
		s, err := sink.NewZipSink(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create archive %s: %w", path, err)
		}
		return s, path, nil
	}

	root := filepath.Join(cfg.Destination, config.ExportRootDir)
	s, err := sink.NewDirSink(root)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create export directory %s: %w", root, err)
	}
	return s, root, nil
}

// tokenHost returns the host serving the token generation page.
func tokenHost(baseDomain string) string {
	if baseDomain == "" {
		return "quip.com"
	}
	return baseDomain
}

// renderEvents consumes tracker events and renders them to the terminal.
// The returned channel closes once the event stream ends.
func renderEvents(events <-chan progress.Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		bold := color.New(color.Bold)
		inProgress := false
		endProgressLine := func() {
			if inProgress {
				fmt.Println()
				inProgress = false
			}
		}

		for ev := range events {
			switch ev.Kind {
			case progress.KindPhase:
				endProgressLine()
				switch ev.Phase {
				case progress.PhaseAnalysis:
					bold.Println("Analyzing folder structure...")
				case progress.PhaseExport:
					bold.Println("Exporting threads...")
				}
			case progress.KindProgress:
				s := ev.Snapshot
				if ev.Phase == progress.PhaseAnalysis {
					fmt.Printf("\r  folders: %d, threads: %d", s.ReadFolders, s.ReadThreads)
				} else {
					fmt.Printf("\r  threads: %d/%d", s.ThreadsProcessed, s.ThreadsTotal)
				}
				inProgress = true
			case progress.KindLog:
				slog.Debug(ev.Message)
			}
		}
		endProgressLine()
	}()
	return done
}

// writeReport writes the Markdown run report into the destination directory.
func writeReport(destination string, run *report.RunReport) error {
	path := filepath.Join(destination, reportFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if _, err := report.NewSummaryWriter(f).Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
