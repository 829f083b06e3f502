// Package markdown renders untrusted model output to sanitized HTML.
package markdown

import (
	"bytes"
	"html"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown to HTML and strips anything unsafe. It is
// safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New returns a Renderer with GitHub-flavored markdown and the UGC
// sanitization policy. Raw HTML in the source is never passed through.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")

	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
	}
}

// Render converts src. On a conversion error the escaped source is
// returned.
func (r *Renderer) Render(src string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		slog.Warn("markdown conversion failed", "error", err)
		return html.EscapeString(src)
	}
	return r.policy.Sanitize(buf.String())
}

var defaultRenderer = New()

// Render converts src with the default Renderer.
func Render(src string) string {
	return defaultRenderer.Render(src)
}
