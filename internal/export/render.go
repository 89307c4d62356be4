package export

import (
	"fmt"
	"io"
	"strings"

	"charsheet/pkg/domain"
)

// Format names an export document type.
type Format string

// Supported formats.
const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Extension returns the file extension used for stored documents.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "application/pdf"
}

// Renderer writes a complete document for a character. Rendering is pure
// given its inputs.
type Renderer interface {
	Render(w io.Writer, c domain.Character, s domain.Status) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w io.Writer, c domain.Character, s domain.Status) error

// Render implements Renderer.
func (f RendererFunc) Render(w io.Writer, c domain.Character, s domain.Status) error {
	return f(w, c, s)
}

// MarkdownRenderer renders the sheet as CommonMark.
type MarkdownRenderer struct{}

// Render implements Renderer.
func (MarkdownRenderer) Render(w io.Writer, c domain.Character, s domain.Status) error {
	sheet := BuildSheet(c, s)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", mdEscape(sheet.Title))
	fmt.Fprintf(&b, "**%s**  \n%s\n\n", mdEscape(sheet.Subtitle), sheet.Level)

	b.WriteString("| Resource | Value | % |\n|---|---|---|\n")
	for _, bar := range sheet.Bars {
		fmt.Fprintf(&b, "| %s | %d/%d | %.0f%% |\n", bar.Label, bar.Current, bar.Max, bar.Percent)
	}
	b.WriteString("\n")

	for _, sec := range sheet.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		switch {
		case len(sec.Rows) > 0:
			for _, row := range sec.Rows {
				fmt.Fprintf(&b, "- **%s:** %s\n", mdEscape(row.Label), mdEscape(row.Value))
			}
		case len(sec.Items) > 0:
			for _, item := range sec.Items {
				fmt.Fprintf(&b, "- %s\n", mdEscape(item))
			}
		default:
			fmt.Fprintf(&b, "_%s_\n", sec.Empty)
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(sheet.Notes) != "" {
		b.WriteString("## Notes\n\n")
		b.WriteString(sheet.Notes)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var mdReplacer = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "|", `\|`)

func mdEscape(s string) string { return mdReplacer.Replace(s) }
