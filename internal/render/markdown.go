// Package render converts AI produced markdown into safe HTML.
package render

import (
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// Markdown renders md and strips anything outside the UGC policy.
func Markdown(md string) template.HTML {
	// Parsers keep state, so each call gets its own.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})

	unsafe := markdown.ToHTML([]byte(md), p, renderer)
	return template.HTML(policy.SanitizeBytes(unsafe)) //nolint:gosec // sanitized above
}

