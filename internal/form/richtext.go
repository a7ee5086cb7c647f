// internal/form/richtext.go
package form

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	richTextPolicy = bluemonday.UGCPolicy()
	markdown       = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// SanitizeRichText strips unsafe markup from rich-text field values.
func SanitizeRichText(html string) string {
	return richTextPolicy.Sanitize(html)
}

// RenderRichText renders markdown source to sanitized HTML for previews.
func RenderRichText(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render rich text: %w", err)
	}
	return richTextPolicy.Sanitize(buf.String()), nil
}
