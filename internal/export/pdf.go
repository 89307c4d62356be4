package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"charsheet/pkg/domain"
)

const (
	pageMargin = 20.0
	barWidth   = 80.0
	lineHeight = 6.0
)

// PDFRenderer renders an A4 sheet with github.com/go-pdf/fpdf. Core fonts are
// used, so text is translated to cp1252.
type PDFRenderer struct {
	// CreatedAt is stamped into the document metadata when set.
	CreatedAt time.Time
}

// Render implements Renderer.
func (r PDFRenderer) Render(w io.Writer, c domain.Character, s domain.Status) error {
	sheet := BuildSheet(c, s)
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 15)
	if !r.CreatedAt.IsZero() {
		pdf.SetCreationDate(r.CreatedAt)
		pdf.SetModificationDate(r.CreatedAt)
	}
	pdf.SetTitle(sheet.Title, true)
	pdf.SetCreator("charsheet", true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	width, _ := pdf.GetPageSize()
	content := width - 2*pageMargin

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(content, 10, tr(sheet.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(content, 7, tr(sheet.Subtitle), "", 1, "C", false, 0, "")
	pdf.CellFormat(content, 7, tr(sheet.Level), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, bar := range sheet.Bars {
		drawBar(pdf, tr, bar)
	}
	pdf.Ln(2)

	for _, sec := range sheet.Sections {
		heading(pdf, tr, content, sec.Title)
		pdf.SetFont("Helvetica", "", 10)
		switch {
		case len(sec.Rows) > 0:
			cols := sec.Columns
			if cols < 1 {
				cols = 1
			}
			colWidth := content / float64(cols)
			for i, row := range sec.Rows {
				ln := 0
				if (i+1)%cols == 0 || i == len(sec.Rows)-1 {
					ln = 1
				}
				pdf.CellFormat(colWidth, lineHeight, tr(fmt.Sprintf("%s: %s", row.Label, row.Value)), "", ln, "L", false, 0, "")
			}
		case len(sec.Items) > 0:
			for _, item := range sec.Items {
				pdf.MultiCell(content, lineHeight, tr("- "+item), "", "L", false)
			}
		default:
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(content, lineHeight, tr(sec.Empty), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}
	if strings.TrimSpace(sheet.Notes) != "" {
		heading(pdf, tr, content, "Notes")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(content, lineHeight, tr(sheet.Notes), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func heading(pdf *fpdf.Fpdf, tr func(string) string, width float64, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(width, 8, tr(title), "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

// drawBar renders a labelled gauge whose fill uses the clamped percentage.
func drawBar(pdf *fpdf.Fpdf, tr func(string) string, bar Bar) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(30, lineHeight, tr(bar.Label), "", 0, "L", false, 0, "")
	x, y := pdf.GetXY()
	pdf.SetFillColor(238, 238, 238)
	pdf.Rect(x, y+1.5, barWidth, 3, "F")
	if fill := barWidth * bar.Percent / 100; fill > 0 {
		pdf.SetFillColor(bar.Color.R, bar.Color.G, bar.Color.B)
		pdf.Rect(x, y+1.5, fill, 3, "F")
	}
	pdf.SetX(x + barWidth + 4)
	pdf.CellFormat(30, lineHeight, fmt.Sprintf("%d/%d", bar.Current, bar.Max), "", 1, "L", false, 0, "")
}
