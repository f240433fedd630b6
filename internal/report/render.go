package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"finmetrics/internal/core"
	"finmetrics/web"
)

var (
	pageTemplate = template.Must(template.ParseFS(web.TemplatesFS, "templates/report.html"))
	md           = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

type page struct {
	Title       string
	Body        template.HTML
	GeneratedAt string
}

// HTML converts the markdown report to HTML and wraps it in the page
// template. Raw HTML in run names or narratives is not passed through.
func HTML(w io.Writer, run core.AnalysisRun, now time.Time) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(run)), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	return pageTemplate.Execute(w, page{
		Title:       run.Name,
		Body:        template.HTML(body.String()),
		GeneratedAt: now.UTC().Format(time.RFC1123),
	})
}

// Terminal renders markdown for a terminal. An empty style detects the
// terminal background; otherwise a glamour standard style name is used.
func Terminal(markdown, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
