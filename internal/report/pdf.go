package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pdfFont     = "Arial"
	pdfFontSize = 9.0
	pageWidth   = 190.0
	pageBottom  = 297.0 - 15.0
)

// PDF renders Markdown onto A4 pages.
func PDF(markdown string, logger arbor.ILogger) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", pdfFontSize)

	source := []byte(markdown)
	doc := newMarkdown().Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{pdf: pdf, source: source}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated")
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(pdfFont, style, pdfFontSize)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			r.pdf.SetFont(pdfFont, "B", headingSize(node.Level))
		} else {
			r.pdf.Ln(7)
			r.updateFont()
		}
	case *ast.Paragraph:
		if !entering && r.listLevel == 0 {
			r.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() {
				r.pdf.Write(5, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", pdfFontSize)
			r.pdf.Write(5, string(node.Text(r.source)))
			r.updateFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(7)
			}
		}
	case *ast.ListItem:
		if entering {
			if node.PreviousSibling() != nil {
				r.pdf.Ln(5)
			}
			r.pdf.SetX(10 + float64(r.listLevel)*5)
			r.pdf.Write(5, "- ")
		}
	case *extast.Table:
		if entering {
			r.renderTable(r.tableRows(node))
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 14
	case 2:
		return 12
	case 3:
		return 11
	}
	return 10
}

func (r *pdfRenderer) tableRows(n *extast.Table) [][]string {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch child.(type) {
			case *extast.TableHeader, *extast.TableRow:
				var row []string
				for c := child.FirstChild(); c != nil; c = c.NextSibling() {
					row = append(row, string(c.Text(r.source)))
				}
				rows = append(rows, row)
			}
		}
	}
	collect(n)
	return rows
}

// renderTable draws one cell per column, truncating text that does not fit.
func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	const size, height = 8.0, 6.0
	widths := r.columnWidths(rows, size)

	r.pdf.Ln(2)
	for i, row := range rows {
		if r.pdf.GetY()+height > pageBottom {
			r.pdf.AddPage()
		}
		style, fill := "", false
		if i == 0 {
			style, fill = "B", true
			r.pdf.SetFillColor(230, 230, 230)
		}
		r.pdf.SetFont(pdfFont, style, size)
		for j, w := range widths {
			value := ""
			if j < len(row) {
				value = r.fit(row[j], w-2)
			}
			r.pdf.CellFormat(w, height, value, "1", 0, "L", fill, 0, "")
		}
		r.pdf.Ln(height)
	}
	r.pdf.Ln(3)
	r.updateFont()
}

func (r *pdfRenderer) columnWidths(rows [][]string, size float64) []float64 {
	widths := make([]float64, len(rows[0]))
	r.pdf.SetFont(pdfFont, "B", size)
	total := 0.0
	for j := range widths {
		for _, row := range rows {
			if j < len(row) {
				widths[j] = max(widths[j], r.pdf.GetStringWidth(row[j])+4)
			}
		}
		widths[j] = max(widths[j], 12)
		total += widths[j]
	}
	if total > pageWidth {
		scale := pageWidth / total
		for j := range widths {
			widths[j] *= scale
		}
	}
	return widths
}

func (r *pdfRenderer) fit(s string, width float64) string {
	if r.pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && r.pdf.GetStringWidth(s+"...") > width {
		s = strings.TrimSpace(s[:len(s)-1])
	}
	return s + "..."
}
