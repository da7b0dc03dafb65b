// Package report renders the summary of a batch run as Markdown, HTML or PDF.
package report

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/orchestrator"
)

// Format is an output format of a report.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported report format %q (use .md, .html or .pdf)", filepath.Ext(path))
}

var outcomes = []models.Outcome{
	models.OutcomeSuccess,
	models.OutcomeDryRun,
	models.OutcomeMetadataOnly,
	models.OutcomeSkipped,
	models.OutcomeFailed,
}

// Markdown renders the summary.
func Markdown(s *orchestrator.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Modernizer run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "Mode **%s**, started %s, took %s.\n\n",
		s.Mode, s.StartedAt.Format(time.RFC3339), s.FinishedAt.Sub(s.StartedAt).Round(time.Second))

	b.WriteString("| Outcome | Plugins |\n|---|---|\n")
	for _, o := range outcomes {
		if n := s.Count(o); n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", o, n)
		}
	}

	b.WriteString("\n## Plugins\n\n")
	b.WriteString("| Plugin | Outcome | State | JDK | Pull request |\n|---|---|---|---|---|\n")
	for _, r := range s.Results {
		if r == nil {
			continue
		}
		jdk := "-"
		if r.JDK != 0 {
			jdk = fmt.Sprint(r.JDK)
		}
		pr := "-"
		if r.ChangeRequestURL != "" {
			pr = r.ChangeRequestURL
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", cell(r.Plugin), r.Outcome, r.State, jdk, cell(pr))
	}

	for _, r := range s.Results {
		if r == nil || (len(r.ChangedFiles) == 0 && len(r.Warnings) == 0 && len(r.Errors) == 0) {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", r.Plugin)
		if len(r.ChangedFiles) > 0 {
			files := make([]string, len(r.ChangedFiles))
			for i, f := range r.ChangedFiles {
				files[i] = "`" + f + "`"
			}
			fmt.Fprintf(&b, "- **Changed files**: %s\n", strings.Join(files, ", "))
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- **Warning**: %s\n", firstLine(w))
		}
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- **Error**: %s\n", firstLine(e))
		}
	}
	return b.String()
}

// HTML converts Markdown to a standalone HTML document.
func HTML(markdown, title string) ([]byte, error) {
	md := newMarkdown()
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(title))
	out.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// Write renders the summary into path, in the format of its extension.
func Write(path string, s *orchestrator.Summary, logger arbor.ILogger) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	markdown := Markdown(s)
	title := "Modernizer run " + s.RunID
	var data []byte
	switch format {
	case FormatMarkdown:
		data = []byte(markdown)
	case FormatHTML:
		data, err = HTML(markdown, title)
	case FormatPDF:
		data, err = PDF(markdown, logger)
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info().
		Str("path", path).
		Str("format", string(format)).
		Int("bytes", len(data)).
		Msg("Report written")
	return nil
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
