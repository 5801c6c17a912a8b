package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/quip-export/quip-export/internal/model"
)

// blobRefPattern matches in-document blob references of the form
// /blob/{threadID}/{blobID}.
var blobRefPattern = regexp.MustCompile(`^/blob/([0-9A-Za-z_-]+)/([0-9A-Za-z_-]+)$`)

// rewriteBlobRefs scans the document markup for blob references, fetches
// each referenced blob once, and rewrites the references. Embedded mode
// inlines the payload as a data URI; otherwise the blob is returned for
// saving next to the document and the reference becomes a relative path
// under blobs/. A blob that cannot be fetched keeps its original reference.
func (e *Exporter) rewriteBlobRefs(ctx context.Context, threadID, body string) (string, []*model.Blob, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("parse document %s: %w", threadID, err)
	}

	fetched := make(map[string]*model.Blob)
	var saved []*model.Blob

	rewrite := func(sel *goquery.Selection, attr string) {
		ref, ok := sel.Attr(attr)
		if !ok {
			return
		}
		m := blobRefPattern.FindStringSubmatch(ref)
		if m == nil {
			return
		}
		blobID := m[2]

		blob, seen := fetched[blobID]
		if !seen {
			blob, err = e.client.GetBlob(ctx, threadID, blobID)
			if err != nil {
				e.logger.Warn("skipping unavailable blob",
					"threadID", threadID,
					"blobID", blobID,
					"error", err,
				)
				fetched[blobID] = nil
				return
			}
			blob.FileName = blobID + extensionFor(blob.Data)
			fetched[blobID] = blob
			if !e.embedImages {
				saved = append(saved, blob)
			}
		}
		if blob == nil {
			return
		}

		if e.embedImages {
			sel.SetAttr(attr, dataURI(blob.Data))
		} else {
			sel.SetAttr(attr, "blobs/"+blob.FileName)
		}
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) { rewrite(sel, "src") })
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) { rewrite(sel, "href") })

	// goquery wraps fragments in a full document; the body children are the
	// original markup.
	out, err := doc.Find("body").Html()
	if err != nil {
		return "", nil, fmt.Errorf("serialize document %s: %w", threadID, err)
	}
	return out, saved, nil
}

// dataURI inlines a blob payload as a base64 data URI.
func dataURI(data []byte) string {
	return "data:" + contentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// contentType sniffs the payload's media type without parameters.
func contentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// blobExtensions maps sniffed media types to file extensions.
var blobExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"application/pdf": ".pdf",
}

// extensionFor picks a file extension for a blob payload. Unknown payloads
// fall back to .bin.
func extensionFor(data []byte) string {
	if ext, ok := blobExtensions[contentType(data)]; ok {
		return ext
	}
	return ".bin"
}
