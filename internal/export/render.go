package export

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/quip-export/quip-export/internal/model"
)

// documentData feeds the shared document template.
type documentData struct {
	// Title is the document title used for the page title.
	Title string

	// Body is the processed document markup. It comes from the API (with
	// blob references rewritten locally), so it is trusted as-is.
	Body template.HTML

	// Stylesheet is the inlined stylesheet. Empty when linking instead.
	Stylesheet template.CSS

	// StylesheetHref is the relative link to the shared stylesheet. Used
	// only when Stylesheet is empty.
	StylesheetHref string

	// Comments are appended below the document body, oldest first.
	Comments []model.Message
}

var documentTmpl = template.Must(template.New("document").Parse(documentTemplate))

// renderDocument merges the thread body into the document shell.
// depth is the number of folder levels below the export root; it anchors the
// relative stylesheet link when styles are not embedded.
func renderDocument(title, body string, comments []model.Message, embedStyles bool, depth int) ([]byte, error) {
	data := documentData{
		Title:    title,
		Body:     template.HTML(body),
		Comments: comments,
	}
	if embedStyles {
		data.Stylesheet = template.CSS(documentCSS)
	} else {
		data.StylesheetHref = strings.Repeat("../", depth) + stylesheetName
	}

	var b strings.Builder
	if err := documentTmpl.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("render document %q: %w", title, err)
	}
	return []byte(b.String()), nil
}
