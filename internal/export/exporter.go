package export

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/quip-export/quip-export/internal/database"
	"github.com/quip-export/quip-export/internal/model"
	"github.com/quip-export/quip-export/internal/progress"
	"github.com/quip-export/quip-export/internal/quip"
	"github.com/quip-export/quip-export/internal/sink"
)

// Client is the slice of the API client the exporter needs.
type Client interface {
	// GetThread fetches a full thread including its HTML body.
	GetThread(ctx context.Context, threadID string) (*model.Thread, error)

	// GetThreadMessages fetches the comment messages of a thread, newest
	// first.
	GetThreadMessages(ctx context.Context, threadID string) ([]model.Message, error)

	// GetBlob fetches a binary attachment of a thread.
	GetBlob(ctx context.Context, threadID, blobID string) (*model.Blob, error)

	// ExportDocx fetches the thread rendered as a DOCX document.
	ExportDocx(ctx context.Context, threadID string) ([]byte, error)

	// ExportXlsx fetches the thread rendered as an XLSX spreadsheet.
	ExportXlsx(ctx context.Context, threadID string) ([]byte, error)

	// ExportPDF fetches the thread rendered as a PDF document.
	ExportPDF(ctx context.Context, threadID string) ([]byte, error)

	// EditDocument replaces the content of a document section.
	EditDocument(ctx context.Context, threadID, sectionID, content string) error

	// LockEdits toggles the edits-disabled flag of a thread.
	LockEdits(ctx context.Context, threadID string, disabled bool) error
}

// Manifest records exports across runs so a resumed run can skip threads
// that have not changed since they were last written.
type Manifest interface {
	AlreadyExported(ctx context.Context, threadID string, updatedUsec int64) (bool, error)
	RecordExport(ctx context.Context, record *database.ExportRecord) error
}

const (
	// DefaultConcurrency bounds how many threads are exported at once.
	DefaultConcurrency = 10

	// stylesheetName is the shared stylesheet file written at the export
	// root when styles are not embedded.
	stylesheetName = "document.css"
)

// Summary aggregates per-thread outcomes of one export run.
type Summary struct {
	// Exported counts threads written to the sink.
	Exported int

	// Resumed counts threads skipped as unchanged since an earlier run.
	Resumed int

	// Skipped counts threads with nothing to export (chat channels).
	Skipped int

	// Failed counts threads abandoned after an unavailable fetch.
	Failed int
}

// Exporter drives the export phase over the inventory built during analysis.
type Exporter struct {
	client   Client
	sink     sink.Sink
	manifest Manifest
	logger   *slog.Logger
	tracker  *progress.Tracker

	format      Format
	concurrency int
	embedImages bool
	embedStyles bool
	comments    bool
	titlePrefix string
	lock        bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// WithTracker sets the progress tracker. A nil tracker discards events.
func WithTracker(tracker *progress.Tracker) Option {
	return func(e *Exporter) {
		e.tracker = tracker
	}
}

// WithManifest enables resume support backed by the export manifest.
func WithManifest(m Manifest) Option {
	return func(e *Exporter) {
		e.manifest = m
	}
}

// WithConcurrency bounds the number of threads exported concurrently.
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithFormat sets the base output format. Defaults to HTML.
func WithFormat(f Format) Option {
	return func(e *Exporter) {
		e.format = f
	}
}

// WithEmbeddedImages inlines blob references as data URIs instead of
// writing blob files next to the document.
func WithEmbeddedImages(embed bool) Option {
	return func(e *Exporter) {
		e.embedImages = embed
	}
}

// WithEmbeddedStyles inlines the stylesheet into every document instead of
// linking a shared document.css at the export root.
func WithEmbeddedStyles(embed bool) Option {
	return func(e *Exporter) {
		e.embedStyles = embed
	}
}

// WithComments appends thread comments to HTML output.
func WithComments(comments bool) Option {
	return func(e *Exporter) {
		e.comments = comments
	}
}

// WithTitlePrefix prepends the prefix to each exported document's title on
// the server after a successful export.
func WithTitlePrefix(prefix string) Option {
	return func(e *Exporter) {
		e.titlePrefix = prefix
	}
}

// WithLock disables further edits on each thread after a successful export.
func WithLock(lock bool) Option {
	return func(e *Exporter) {
		e.lock = lock
	}
}

// New creates an Exporter writing to the given sink.
func New(client Client, out sink.Sink, opts ...Option) *Exporter {
	e := &Exporter{
		client:      client,
		sink:        out,
		format:      FormatHTML,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// outcome classifies what happened to a single thread.
type outcome int

const (
	outcomeExported outcome = iota
	outcomeResumed
	outcomeSkipped
	outcomeFailed
)

// Export processes every discovered thread and returns the run summary.
// Individual unavailable threads are skipped; the run only fails on
// cancellation or a broken sink.
func (e *Exporter) Export(ctx context.Context, state *model.CrawlState) (*Summary, error) {
	threads := state.Threads()
	total := len(threads)

	if e.comments && e.format != FormatHTML {
		e.logger.Warn("comments are only supported for HTML export and will be omitted",
			"format", string(e.format),
		)
	}

	if e.format == FormatHTML && !e.embedStyles {
		if _, err := e.sink.Save(nil, stylesheetName, []byte(documentCSS)); err != nil {
			return nil, fmt.Errorf("write shared stylesheet: %w", err)
		}
	}

	var processed, exported, resumed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, stub := range threads {
		g.Go(func() error {
			result, err := e.exportThread(gctx, stub)
			if err != nil {
				return err
			}

			switch result {
			case outcomeExported:
				exported.Add(1)
			case outcomeResumed:
				resumed.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}

			// Every thread counts once toward the processed total so the
			// progress bar reaches the analysis total.
			done := processed.Add(1)
			e.tracker.Progress(progress.Snapshot{
				ThreadsProcessed: int(done),
				ThreadsTotal:     total,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Summary{
		Exported: int(exported.Load()),
		Resumed:  int(resumed.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}, nil
}

// exportThread produces the artifact for one thread. It returns an error
// only for conditions that must abort the whole run.
func (e *Exporter) exportThread(ctx context.Context, stub *model.ThreadStub) (outcome, error) {
	// Bare stubs (their metadata batch failed during analysis) need a full
	// fetch before the format can be resolved.
	var thread *model.Thread
	if stub.Title == "" || stub.Type == "" {
		t, err := e.client.GetThread(ctx, stub.ID)
		if err != nil {
			return e.skipUnavailable(stub, err)
		}
		thread = t
		stub.Title = t.Info.Title
		stub.Type = t.Info.Type
		stub.UpdatedUsec = t.Info.UpdatedUsec
	}

	if stub.Type == model.ThreadTypeChannel {
		e.logger.Debug("skipping chat channel", "threadID", stub.ID)
		return outcomeSkipped, nil
	}

	if e.manifest != nil {
		unchanged, err := e.manifest.AlreadyExported(ctx, stub.ID, stub.UpdatedUsec)
		if err != nil {
			e.logger.Warn("manifest lookup failed", "threadID", stub.ID, "error", err)
		} else if unchanged {
			e.logger.Debug("unchanged since last run", "threadID", stub.ID)
			e.tracker.Log("unchanged " + stub.Title)
			return outcomeResumed, nil
		}
	}

	format := resolveFormat(e.format, stub.Type)

	var data []byte
	var err error
	switch format {
	case FormatHTML:
		if thread == nil {
			thread, err = e.client.GetThread(ctx, stub.ID)
			if err != nil {
				return e.skipUnavailable(stub, err)
			}
		}
		data, err = e.renderThread(ctx, thread, stub.Path)
	case FormatDocx:
		data, err = e.client.ExportDocx(ctx, stub.ID)
	case FormatXlsx:
		data, err = e.client.ExportXlsx(ctx, stub.ID)
	case FormatPDF:
		data, err = e.client.ExportPDF(ctx, stub.ID)
	}
	if err != nil {
		return e.skipUnavailable(stub, err)
	}

	title := stub.Title
	if thread != nil {
		title = thread.Info.Title
	}
	fileName := title + format.Extension()
	savedPath, err := e.sink.Save(stub.Path, fileName, data)
	if err != nil {
		return outcomeFailed, err
	}

	if e.manifest != nil {
		record := &database.ExportRecord{
			ThreadID:    stub.ID,
			UpdatedUsec: stub.UpdatedUsec,
			Path:        savedPath,
			Format:      string(format),
		}
		if err := e.manifest.RecordExport(ctx, record); err != nil {
			e.logger.Warn("failed to record export", "threadID", stub.ID, "error", err)
		}
	}

	e.mutateThread(ctx, stub, thread)

	e.tracker.Log("exported " + title)
	return outcomeExported, nil
}

// skipUnavailable converts an unavailable fetch into a per-thread skip.
// Cancellation and other unexpected errors still abort the run.
func (e *Exporter) skipUnavailable(stub *model.ThreadStub, err error) (outcome, error) {
	if errors.Is(err, quip.ErrUnavailable) {
		e.logger.Warn("skipping unavailable thread", "threadID", stub.ID, "error", err)
		e.tracker.Log("skipped unavailable thread " + stub.ID)
		return outcomeFailed, nil
	}
	return outcomeFailed, err
}

// renderThread turns a full thread into the final HTML artifact, saving any
// referenced blobs next to it.
func (e *Exporter) renderThread(ctx context.Context, thread *model.Thread, path []string) ([]byte, error) {
	body, blobs, err := e.rewriteBlobRefs(ctx, thread.Info.ID, thread.HTML)
	if err != nil {
		return nil, err
	}
	for _, blob := range blobs {
		blobDir := append(slices.Clone(path), "blobs")
		if _, err := e.sink.Save(blobDir, blob.FileName, blob.Data); err != nil {
			return nil, err
		}
	}

	var comments []model.Message
	if e.comments && e.format == FormatHTML {
		messages, err := e.client.GetThreadMessages(ctx, thread.Info.ID)
		if err != nil {
			e.logger.Warn("failed to fetch comments", "threadID", thread.Info.ID, "error", err)
		} else {
			// The API returns newest first; render oldest first.
			slices.Reverse(messages)
			comments = messages
		}
	}

	return renderDocument(thread.Info.Title, body, comments, e.embedStyles, len(path))
}

// mutateThread applies the optional post-export mutations. Both are
// best-effort; a failure never invalidates the completed export. The title
// edit runs before the lock, since a locked thread rejects edits.
func (e *Exporter) mutateThread(ctx context.Context, stub *model.ThreadStub, thread *model.Thread) {
	if e.titlePrefix != "" && stub.Type == model.ThreadTypeDocument {
		if err := e.applyTitlePrefix(ctx, stub.ID, thread); err != nil {
			e.logger.Warn("failed to apply title prefix", "threadID", stub.ID, "error", err)
		}
	}
	if e.lock {
		if err := e.client.LockEdits(ctx, stub.ID, true); err != nil {
			e.logger.Warn("failed to lock thread", "threadID", stub.ID, "error", err)
		}
	}
}

// applyTitlePrefix replaces the document's title section with a prefixed
// title. A title that already starts with the prefix is left alone, so
// repeated runs apply the prefix once.
func (e *Exporter) applyTitlePrefix(ctx context.Context, threadID string, thread *model.Thread) error {
	if thread == nil {
		var err error
		thread, err = e.client.GetThread(ctx, threadID)
		if err != nil {
			return err
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(thread.HTML))
	if err != nil {
		return fmt.Errorf("parse document %s: %w", threadID, err)
	}

	// The first h1 carries the document title; its id is the section ID
	// the edit operation targets.
	sel := doc.Find("h1[id]").First()
	sectionID, ok := sel.Attr("id")
	if !ok {
		return nil
	}
	title := sel.Text()
	if strings.HasPrefix(title, e.titlePrefix) {
		return nil
	}

	content := "<h1>" + html.EscapeString(e.titlePrefix+title) + "</h1>"
	return e.client.EditDocument(ctx, threadID, sectionID, content)
}
