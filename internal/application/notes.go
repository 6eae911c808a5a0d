package application

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	notesRenderer  goldmark.Markdown
	notesSanitizer *bluemonday.Policy
)

func init() {
	notesRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	notesSanitizer = bluemonday.UGCPolicy()
}

// RenderNotes converts markdown release notes to sanitized HTML.
// Returns empty string for empty input.
func RenderNotes(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := notesRenderer.Convert([]byte(src), &buf); err != nil {
		return notesSanitizer.Sanitize(src)
	}

	return notesSanitizer.Sanitize(buf.String())
}
