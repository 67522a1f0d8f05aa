// Package export renders stored SOP documents into portable formats:
// markdown for editing and PDF for distribution. Step screenshots are
// decoded from their data-URI form; step text that carries page markup is
// converted rather than escaped.
package export

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/sopify/sopify/store"
)

// Renderer converts SOP documents to export formats. Safe for concurrent
// use; the underlying converter is stateless after construction.
type Renderer struct {
	md *converter.Converter
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Markdown renders the document as a markdown file: title, description,
// then one numbered section per step.
func (r *Renderer) Markdown(sop *store.SOP) ([]byte, error) {
	if sop == nil {
		return nil, fmt.Errorf("export: nil document")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", sop.Title)
	if sop.Description != "" {
		sb.WriteString(r.text(sop.Description, sop.URL))
		sb.WriteString("\n\n")
	}
	if sop.URL != "" {
		fmt.Fprintf(&sb, "Source: <%s>\n\n", sop.URL)
	}

	for i, step := range sop.Steps {
		title := step.Title
		if title == "" {
			title = "Step"
		}
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, r.text(title, step.URL))
		if step.Description != "" {
			sb.WriteString(r.text(step.Description, step.URL))
			sb.WriteString("\n\n")
		}
		if step.URL != "" && step.URL != sop.URL {
			fmt.Fprintf(&sb, "<%s>\n\n", step.URL)
		}
		if step.ImgData != "" {
			fmt.Fprintf(&sb, "![step %d](%s)\n\n", i+1, step.ImgData)
		}
	}

	return []byte(sb.String()), nil
}

// text converts a possibly-HTML fragment to markdown, falling back to the
// raw string when conversion fails or yields nothing.
func (r *Renderer) text(s, sourceURL string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	out, err := r.md.ConvertString(s, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(out) == "" {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}
