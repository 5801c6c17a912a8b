package export

import "github.com/quip-export/quip-export/internal/model"

// Format is an output artifact format, resolved once per thread.
type Format string

// Supported output formats.
const (
	FormatHTML Format = "html"
	FormatDocx Format = "docx"
	FormatXlsx Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// resolveFormat maps the configured base format and the thread type to the
// concrete per-thread format. Spreadsheets always export as XLSX; neither the
// HTML template nor the DOCX and PDF renderers handle sheet content.
func resolveFormat(base Format, threadType string) Format {
	if threadType == model.ThreadTypeSpreadsheet {
		return FormatXlsx
	}
	return base
}
