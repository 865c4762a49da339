package v1

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// renderMarkdown converts an assistant reply to HTML. On failure the
// partial output is returned with the error.
func renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	err := goldmark.Convert([]byte(src), &buf)
	return buf.String(), err
}
