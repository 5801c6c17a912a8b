package export

import _ "embed"

// documentTemplate is the shared HTML shell every exported document is
// rendered into.
//
//go:embed assets/document.html.tmpl
var documentTemplate string

// documentCSS is the shared stylesheet, either inlined per document or
// written once as document.css at the export root.
//
//go:embed assets/document.css
var documentCSS string
