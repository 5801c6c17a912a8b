package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/quip-export/quip-export/internal/quip"
)

// RunReport aggregates the outcome of one export run.
type RunReport struct {
	// BaseDomain is the service domain the run exported from.
	BaseDomain string

	// Destination describes where the output went (directory or archive).
	Destination string

	// Format is the configured base output format.
	Format string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the total wall-clock time of the run.
	Duration time.Duration

	// FoldersTotal and ThreadsTotal are the analysis-phase totals.
	FoldersTotal int
	ThreadsTotal int

	// Exported, Resumed, Skipped and Failed are the per-thread outcomes.
	Exported int
	Resumed  int
	Skipped  int
	Failed   int

	// APICalls is the client's call counter snapshot.
	APICalls quip.StatsSnapshot
}

// SummaryWriter outputs run reports in Markdown format.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides type-safe tables and GitHub-flavored alerts.
type SummaryWriter struct {
	output io.Writer
}

// NewSummaryWriter creates a SummaryWriter that outputs to the given writer.
func NewSummaryWriter(output io.Writer) *SummaryWriter {
	return &SummaryWriter{output: output}
}

// Write outputs the full run report. It returns the number of bytes
// rendered and any error encountered while writing.
func (w *SummaryWriter) Write(report *RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeOutcomes(md, report)
	w.writeAPICalls(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *SummaryWriter) writeHeader(md *markdown.Markdown, report *RunReport) {
	md.H1("Quip Export Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + report.BaseDomain + "`"},
			{"Destination", "`" + report.Destination + "`"},
			{"Format", report.Format},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.Round(time.Second).String()},
			{"Folders discovered", strconv.Itoa(report.FoldersTotal)},
			{"Threads discovered", strconv.Itoa(report.ThreadsTotal)},
		},
	})
	md.PlainText("")
}

// writeOutcomes writes the per-thread outcome table and a closing alert.
func (w *SummaryWriter) writeOutcomes(md *markdown.Markdown, report *RunReport) {
	md.H2("Outcomes")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"✅ Exported", strconv.Itoa(report.Exported)},
			{"♻️ Unchanged (resumed)", strconv.Itoa(report.Resumed)},
			{"⏭️ Skipped (no document body)", strconv.Itoa(report.Skipped)},
			{"❌ Unavailable", strconv.Itoa(report.Failed)},
		},
	})
	md.PlainText("")

	if report.Failed > 0 {
		md.Warningf(
			"%d thread(s) could not be fetched and are missing from the export. Re-run to retry them.",
			report.Failed,
		)
	} else {
		md.Tip("All discovered threads were exported.")
	}
	md.PlainText("")
}

// writeAPICalls writes the API call statistics table.
func (w *SummaryWriter) writeAPICalls(md *markdown.Markdown, report *RunReport) {
	md.H2("API Calls")
	md.PlainText("")

	calls := report.APICalls
	rows := [][]string{
		{"Current user", strconv.FormatInt(calls.GetCurrentUser, 10)},
		{"Folder fetches", strconv.FormatInt(calls.GetFolder+calls.GetFolders, 10)},
		{"Thread fetches", strconv.FormatInt(calls.GetThread, 10)},
		{"Thread metadata batches", strconv.FormatInt(calls.GetThreads, 10)},
		{"Blob fetches", strconv.FormatInt(calls.GetBlob, 10)},
		{"Message fetches", strconv.FormatInt(calls.GetMessages, 10)},
		{"DOCX exports", strconv.FormatInt(calls.ExportDocx, 10)},
		{"XLSX exports", strconv.FormatInt(calls.ExportXlsx, 10)},
		{"PDF exports", strconv.FormatInt(calls.ExportPDF, 10)},
		{"Section edits", strconv.FormatInt(calls.UpdateThread, 10)},
		{"Edit locks", strconv.FormatInt(calls.LockThread, 10)},
		{"**Total requests**", "**" + strconv.FormatInt(calls.Queries, 10) + "**"},
	}

	md.Table(markdown.TableSet{
		Header: []string{"Operation", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}
