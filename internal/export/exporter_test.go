package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/quip-export/quip-export/internal/database"
	"github.com/quip-export/quip-export/internal/model"
	"github.com/quip-export/quip-export/internal/quip"
	"github.com/quip-export/quip-export/internal/sink"
)

// pngBytes is a minimal payload the content sniffer detects as image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

// memSink records saves in memory, keyed by slash-joined relative path.
type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte)}
}

func (s *memSink) Save(dir []string, fileName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.Join(append(slices.Clone(dir), fileName), "/")
	s.files[key] = data
	return key, nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) file(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	return data, ok
}

type sectionEdit struct {
	threadID  string
	sectionID string
	content   string
}

// fakeClient is an in-memory exporter Client.
type fakeClient struct {
	mu            sync.Mutex
	threads       map[string]*model.Thread
	blobs         map[string][]byte
	messages      map[string][]model.Message
	unavailable   map[string]bool
	threadFetches map[string]int
	xlsxCalls     []string
	docxCalls     []string
	pdfCalls      []string
	edits         []sectionEdit
	locked        []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		threads:       make(map[string]*model.Thread),
		blobs:         make(map[string][]byte),
		messages:      make(map[string][]model.Message),
		unavailable:   make(map[string]bool),
		threadFetches: make(map[string]int),
	}
}

func (f *fakeClient) addThread(id, title, threadType, html string) {
	f.threads[id] = &model.Thread{
		Info: model.ThreadInfo{ID: id, Title: title, Type: threadType, UpdatedUsec: 1},
		HTML: html,
	}
}

func (f *fakeClient) GetThread(_ context.Context, threadID string) (*model.Thread, error) {
	f.mu.Lock()
	f.threadFetches[threadID]++
	f.mu.Unlock()

	if f.unavailable[threadID] {
		return nil, fmt.Errorf("threads/%s: HTTP 404: %w", threadID, quip.ErrUnavailable)
	}
	t, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("threads/%s: HTTP 404: %w", threadID, quip.ErrUnavailable)
	}
	return t, nil
}

func (f *fakeClient) GetThreadMessages(_ context.Context, threadID string) ([]model.Message, error) {
	return f.messages[threadID], nil
}

func (f *fakeClient) GetBlob(_ context.Context, threadID, blobID string) (*model.Blob, error) {
	data, ok := f.blobs[threadID+"/"+blobID]
	if !ok {
		return nil, fmt.Errorf("blob/%s/%s: HTTP 404: %w", threadID, blobID, quip.ErrUnavailable)
	}
	return &model.Blob{ThreadID: threadID, ID: blobID, Data: data}, nil
}

func (f *fakeClient) ExportDocx(_ context.Context, threadID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docxCalls = append(f.docxCalls, threadID)
	return []byte("docx:" + threadID), nil
}

func (f *fakeClient) ExportXlsx(_ context.Context, threadID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.xlsxCalls = append(f.xlsxCalls, threadID)
	return []byte("xlsx:" + threadID), nil
}

func (f *fakeClient) ExportPDF(_ context.Context, threadID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdfCalls = append(f.pdfCalls, threadID)
	return []byte("pdf:" + threadID), nil
}

func (f *fakeClient) EditDocument(_ context.Context, threadID, sectionID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sectionEdit{threadID: threadID, sectionID: sectionID, content: content})
	return nil
}

func (f *fakeClient) LockEdits(_ context.Context, threadID string, disabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if disabled {
		f.locked = append(f.locked, threadID)
	}
	return nil
}

func (f *fakeClient) fetches(threadID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threadFetches[threadID]
}

// memManifest is an in-memory resume manifest.
type memManifest struct {
	mu      sync.Mutex
	records map[string]int64
	paths   map[string]string
}

func newMemManifest() *memManifest {
	return &memManifest{
		records: make(map[string]int64),
		paths:   make(map[string]string),
	}
}

func (m *memManifest) AlreadyExported(_ context.Context, threadID string, updatedUsec int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if updatedUsec == 0 {
		return false, nil
	}
	stored, ok := m.records[threadID]
	return ok && stored >= updatedUsec, nil
}

func (m *memManifest) RecordExport(_ context.Context, record *database.ExportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ThreadID] = record.UpdatedUsec
	m.paths[record.ThreadID] = record.Path
	return nil
}

func (m *memManifest) path(threadID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paths[threadID]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testState(stubs ...*model.ThreadStub) *model.CrawlState {
	state := model.NewCrawlState()
	for _, stub := range stubs {
		state.AddThread(stub)
	}
	return state
}

// TestExportTree verifies the output tree mirrors the discovered folder
// hierarchy and a thread reachable through two paths is rendered once.
func TestExportTree(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T1", "T1", model.ThreadTypeDocument, "<h1 id='s1'>T1</h1><p>one</p>")
	fc.addThread("T2", "T2", model.ThreadTypeDocument, "<h1 id='s2'>T2</h1><p>two</p>")

	out := newMemSink()
	// T2 was discovered first under F1/F2; the later root-level sighting was
	// deduplicated during analysis.
	state := testState(
		&model.ThreadStub{ID: "T1", Title: "T1", Type: model.ThreadTypeDocument, Path: []string{"F1"}, UpdatedUsec: 1},
		&model.ThreadStub{ID: "T2", Title: "T2", Type: model.ThreadTypeDocument, Path: []string{"F1", "F2"}, UpdatedUsec: 1},
	)

	e := New(fc, out, WithLogger(testLogger()))
	summary, err := e.Export(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Exported != 2 {
		t.Errorf("expected 2 exported, got %+v", summary)
	}
	for _, key := range []string{"document.css", "F1/T1.html", "F1/F2/T2.html"} {
		if _, ok := out.file(key); !ok {
			t.Errorf("missing output file %s, have %v", key, keys(out))
		}
	}
	if got := fc.fetches("T2"); got != 1 {
		t.Errorf("expected T2 fetched once, got %d", got)
	}

	data, _ := out.file("F1/F2/T2.html")
	if !strings.Contains(string(data), `href="../../document.css"`) {
		t.Errorf("expected depth-relative stylesheet link, got:\n%s", data)
	}
}

func keys(s *memSink) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for k := range s.files {
		names = append(names, k)
	}
	return names
}

// TestExportUnavailableThreadCounted verifies a permanently failing thread
// is skipped but still counted, and the run completes.
func TestExportUnavailableThreadCounted(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T2", "T2", model.ThreadTypeDocument, "<p>ok</p>")
	fc.unavailable["T1"] = true

	out := newMemSink()
	state := testState(
		&model.ThreadStub{ID: "T1", Title: "T1", Type: model.ThreadTypeDocument, UpdatedUsec: 1},
		&model.ThreadStub{ID: "T2", Title: "T2", Type: model.ThreadTypeDocument, UpdatedUsec: 1},
	)

	e := New(fc, out, WithLogger(testLogger()))
	summary, err := e.Export(context.Background(), state)
	if err != nil {
		t.Fatalf("expected run to complete, got %v", err)
	}
	if summary.Failed != 1 || summary.Exported != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

// TestExportSpreadsheetAsXlsx verifies spreadsheets export as XLSX even in
// HTML mode.
func TestExportSpreadsheetAsXlsx(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	out := newMemSink()
	state := testState(
		&model.ThreadStub{ID: "S1", Title: "Budget", Type: model.ThreadTypeSpreadsheet, UpdatedUsec: 1},
	)

	e := New(fc, out, WithLogger(testLogger()))
	if _, err := e.Export(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	if len(fc.xlsxCalls) != 1 || fc.xlsxCalls[0] != "S1" {
		t.Errorf("expected one xlsx export for S1, got %v", fc.xlsxCalls)
	}
	if _, ok := out.file("Budget.xlsx"); !ok {
		t.Errorf("missing Budget.xlsx, have %v", keys(out))
	}
}

// TestExportChannelSkipped verifies chat channels produce no artifact.
func TestExportChannelSkipped(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	out := newMemSink()
	state := testState(
		&model.ThreadStub{ID: "C1", Title: "Standup", Type: model.ThreadTypeChannel, UpdatedUsec: 1},
	)

	e := New(fc, out, WithLogger(testLogger()))
	summary, err := e.Export(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Exported != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

// TestExportResume verifies unchanged threads are skipped via the manifest
// and changed threads are re-exported.
func TestExportResume(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T1", "T1", model.ThreadTypeDocument, "<p>one</p>")
	fc.addThread("T2", "T2", model.ThreadTypeDocument, "<p>two</p>")

	manifest := newMemManifest()
	out := newMemSink()
	state := testState(
		&model.ThreadStub{ID: "T1", Title: "T1", Type: model.ThreadTypeDocument, UpdatedUsec: 5},
		&model.ThreadStub{ID: "T2", Title: "T2", Type: model.ThreadTypeDocument, UpdatedUsec: 5},
	)

	e := New(fc, out, WithLogger(testLogger()), WithManifest(manifest))
	if _, err := e.Export(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	// Second run: T1 unchanged, T2 has a newer revision.
	state2 := testState(
		&model.ThreadStub{ID: "T1", Title: "T1", Type: model.ThreadTypeDocument, UpdatedUsec: 5},
		&model.ThreadStub{ID: "T2", Title: "T2", Type: model.ThreadTypeDocument, UpdatedUsec: 9},
	)
	summary, err := e.Export(context.Background(), state2)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Resumed != 1 || summary.Exported != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

// TestExportComments verifies comments are appended oldest first.
func TestExportComments(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T1", "T1", model.ThreadTypeDocument, "<p>body</p>")
	fc.messages["T1"] = []model.Message{
		{ID: "M2", AuthorName: "Bea", Text: "second", CreatedUsec: 2_000_000},
		{ID: "M1", AuthorName: "Ada", Text: "first", CreatedUsec: 1_000_000},
	}

	out := newMemSink()
	state := testState(
		&model.ThreadStub{ID: "T1", Title: "T1", Type: model.ThreadTypeDocument, UpdatedUsec: 1},
	)

	e := New(fc, out, WithLogger(testLogger()), WithComments(true))
	if _, err := e.Export(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	data, ok := out.file("T1.html")
	if !ok {
		t.Fatalf("missing T1.html, have %v", keys(out))
	}
	html := string(data)
	if !strings.Contains(html, "Comments") {
		t.Error("expected comments section")
	}
	if strings.Index(html, "first") > strings.Index(html, "second") {
		t.Error("expected comments oldest first")
	}
}

// TestTitlePrefixIdempotent verifies the prefix edit targets the title
// section and is not applied twice.
func TestTitlePrefixIdempotent(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T1", "Plan", model.ThreadTypeDocument, "<h1 id='SEC1'>Plan</h1><p>body</p>")

	out := newMemSink()
	state := testState(
		&model.ThreadStub{ID: "T1", Title: "Plan", Type: model.ThreadTypeDocument, UpdatedUsec: 1},
	)

	e := New(fc, out, WithLogger(testLogger()), WithTitlePrefix("[EXPORTED] "))
	if _, err := e.Export(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	if len(fc.edits) != 1 {
		t.Fatalf("expected one edit, got %d", len(fc.edits))
	}
	edit := fc.edits[0]
	if edit.sectionID != "SEC1" {
		t.Errorf("expected edit targeting SEC1, got %s", edit.sectionID)
	}
	if !strings.Contains(edit.content, "[EXPORTED] Plan") {
		t.Errorf("unexpected edit content %q", edit.content)
	}

	// Re-run against the already prefixed document: no further edit.
	fc.addThread("T1", "[EXPORTED] Plan", model.ThreadTypeDocument,
		"<h1 id='SEC1'>[EXPORTED] Plan</h1><p>body</p>")
	if _, err := e.Export(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if len(fc.edits) != 1 {
		t.Errorf("expected prefix applied once across runs, got %d edits", len(fc.edits))
	}
}

// TestExportLock verifies the lock runs after a successful export.
func TestExportLock(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T1", "T1", model.ThreadTypeDocument, "<p>body</p>")
	fc.unavailable["T2"] = true

	out := newMemSink()
	state := testState(
		&model.ThreadStub{ID: "T1", Title: "T1", Type: model.ThreadTypeDocument, UpdatedUsec: 1},
		&model.ThreadStub{ID: "T2", Title: "T2", Type: model.ThreadTypeDocument, UpdatedUsec: 1},
	)

	e := New(fc, out, WithLogger(testLogger()), WithLock(true))
	if _, err := e.Export(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	if len(fc.locked) != 1 || fc.locked[0] != "T1" {
		t.Errorf("expected only the exported thread locked, got %v", fc.locked)
	}
}

// TestExportBareStubResolved verifies a stub without metadata is resolved
// through the full thread fetch.
func TestExportBareStubResolved(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T1", "Recovered", model.ThreadTypeDocument, "<p>body</p>")

	out := newMemSink()
	state := testState(&model.ThreadStub{ID: "T1"})

	e := New(fc, out, WithLogger(testLogger()))
	summary, err := e.Export(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Exported != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, ok := out.file("Recovered.html"); !ok {
		t.Errorf("expected title from full fetch, have %v", keys(out))
	}
	if got := fc.fetches("T1"); got != 1 {
		t.Errorf("expected a single full fetch, got %d", got)
	}
}

// TestExportManifestRecordsSinkPath verifies the manifest stores the path
// the sink actually resolved, including sanitization and collision suffixes.
func TestExportManifestRecordsSinkPath(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.addThread("T1", "Q3: plan?", model.ThreadTypeDocument, "<p>one</p>")
	fc.addThread("T2", "Q3: plan?", model.ThreadTypeDocument, "<p>two</p>")

	root := t.TempDir()
	out, err := sink.NewDirSink(root)
	if err != nil {
		t.Fatal(err)
	}

	manifest := newMemManifest()
	state := testState(
		&model.ThreadStub{ID: "T1", Title: "Q3: plan?", Type: model.ThreadTypeDocument, UpdatedUsec: 1, Path: []string{"Shared"}},
		&model.ThreadStub{ID: "T2", Title: "Q3: plan?", Type: model.ThreadTypeDocument, UpdatedUsec: 1, Path: []string{"Shared"}},
	)

	e := New(fc, out, WithLogger(testLogger()), WithManifest(manifest), WithConcurrency(1))
	summary, err := e.Export(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Exported != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	p1, p2 := manifest.path("T1"), manifest.path("T2")
	if p1 == p2 {
		t.Errorf("expected distinct recorded paths, both %q", p1)
	}
	for _, p := range []string{p1, p2} {
		if strings.ContainsAny(p, `:?`) {
			t.Errorf("expected sanitized path, got %q", p)
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			t.Errorf("recorded path %q does not match a written file: %v", p, err)
		}
	}
}
