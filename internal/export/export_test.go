package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"charsheet/internal/blob"
	"charsheet/internal/config"
	"charsheet/pkg/domain"
)

func sample() (domain.Character, domain.Status) {
	c := domain.NewCharacterTemplate()
	c.ID = "c1"
	c.Name = "Morwen Ashgrave"
	return c, domain.DefaultStatus()
}

func TestBuildSheetClampsBars(t *testing.T) {
	c, s := sample()
	c, err := domain.UpdateResource(c, domain.ResourceHP, 15, 10)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	sheet := BuildSheet(c, s)
	if sheet.Bars[0].Label != "HP" || sheet.Bars[0].Percent != 100 {
		t.Fatalf("hp bar should clamp to 100, got %+v", sheet.Bars[0])
	}
	if len(sheet.Bars) != len(domain.ResourceNames) {
		t.Fatalf("expected one bar per resource, got %d", len(sheet.Bars))
	}
}

func TestBuildSheetShowsEmptySlots(t *testing.T) {
	c, s := sample()
	c, _ = domain.UpdateEquipmentSlot(c, "armor", nil)
	sheet := BuildSheet(c, s)
	for _, sec := range sheet.Sections {
		if sec.Title != "Equipment" {
			continue
		}
		for _, row := range sec.Rows {
			if row.Label == "Armor" && row.Value == "Empty" {
				return
			}
		}
		t.Fatalf("armor slot not rendered as empty: %+v", sec.Rows)
	}
	t.Fatalf("equipment section missing")
}

func TestMarkdownRenderer(t *testing.T) {
	c, s := sample()
	c = domain.UpdateBackpack(c, nil)
	c.Notes = "Owes the *guild* 40 gold"
	var buf bytes.Buffer
	if err := (MarkdownRenderer{}).Render(&buf, c, s); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Morwen Ashgrave",
		"| HP | 10/10 | 100% |",
		"| Popularity | 0/100 | 0% |",
		"- **Gold:** 100",
		"- Drain Life (attack), damage 5, cost 5 mana",
		"_Empty backpack_",
		"- **Strength:** 28",
		"Owes the *guild* 40 gold",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestPDFRenderer(t *testing.T) {
	c, s := sample()
	c.Name = "Élodie Çava"
	var buf bytes.Buffer
	r := PDFRenderer{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := r.Render(&buf, c, s); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", buf.Bytes()[:16])
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"pdf": FormatPDF, "MD": FormatMarkdown, " markdown ": FormatMarkdown} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Fatalf("expected error for docx")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Morwen Ashgrave":  "morwen-ashgrave",
		"  Élodie  Çava ": "elodie-cava",
		"R2-D2!":           "r2-d2",
		"???":              "character",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func newExporter(t *testing.T, opts ...Option) (*Exporter, blob.Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))
	store, err := blob.Open(context.Background(), config.BlobConfig{Driver: config.BlobMemory})
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	return NewExporter(store, append([]Option{WithClock(mock)}, opts...)...), store, mock
}

func TestExporterStoresDocument(t *testing.T) {
	ctx := context.Background()
	exp, store, _ := newExporter(t)
	c, s := sample()

	art, err := exp.Export(ctx, c, s, FormatMarkdown)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if art.Key != "exports/c1/morwen-ashgrave-20260301T123000Z.md" {
		t.Fatalf("unexpected key %s", art.Key)
	}
	info, rc, err := store.Get(ctx, art.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !strings.HasPrefix(string(body), "# Morwen Ashgrave") || info.Metadata["character-id"] != "c1" {
		t.Fatalf("unexpected stored document %+v", info)
	}
	if art.Size != int64(len(body)) {
		t.Fatalf("artifact size %d, body %d", art.Size, len(body))
	}

	again, err := exp.Export(ctx, c, s, FormatMarkdown)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if again.Key == art.Key || !strings.HasSuffix(again.Key, "-1.md") {
		t.Fatalf("same-second export should get a suffixed key, got %s", again.Key)
	}

	pdf, err := exp.Export(ctx, c, s, FormatPDF)
	if err != nil {
		t.Fatalf("pdf export: %v", err)
	}
	if pdf.ContentType != "application/pdf" || !strings.HasSuffix(pdf.Key, ".pdf") {
		t.Fatalf("unexpected pdf artifact %+v", pdf)
	}

	list, err := exp.List(ctx, "c1")
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %v %d", err, len(list))
	}
}

func TestExporterRenderFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("font missing")
	exp, store, _ := newExporter(t, WithRenderer(FormatPDF, RendererFunc(func(w io.Writer, _ domain.Character, _ domain.Status) error {
		_, _ = w.Write([]byte("%PDF-partial"))
		return boom
	})))
	c, s := sample()

	_, err := exp.Export(ctx, c, s, FormatPDF)
	var rerr *domain.RenderError
	if !errors.As(err, &rerr) || rerr.Format != "pdf" || !errors.Is(err, boom) {
		t.Fatalf("expected RenderError wrapping cause, got %v", err)
	}
	if list, _ := store.List(ctx, KeyPrefix); len(list) != 0 {
		t.Fatalf("render failure left %d documents", len(list))
	}
}

func TestExporterUnknownFormat(t *testing.T) {
	exp, _, _ := newExporter(t)
	c, s := sample()
	_, err := exp.Export(context.Background(), c, s, Format("docx"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExporterUnsavedCharacter(t *testing.T) {
	exp, _, _ := newExporter(t)
	c, s := sample()
	c.ID = ""
	art, err := exp.Export(context.Background(), c, s, FormatMarkdown)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(art.Key, "exports/unsaved/") {
		t.Fatalf("unexpected key %s", art.Key)
	}
}

func TestExporterDeleteAll(t *testing.T) {
	ctx := context.Background()
	exp, store, _ := newExporter(t)
	c, s := sample()
	other := c
	other.ID = "c10"
	for _, ch := range []domain.Character{c, c, other} {
		if _, err := exp.Export(ctx, ch, s, FormatMarkdown); err != nil {
			t.Fatalf("export: %v", err)
		}
	}

	n, err := exp.DeleteAll(ctx, "c1")
	if err != nil || n != 2 {
		t.Fatalf("delete all: n=%d err=%v", n, err)
	}
	if left, _ := exp.List(ctx, "c1"); len(left) != 0 {
		t.Fatalf("%d exports left behind", len(left))
	}
	if kept, _ := store.List(ctx, KeyPrefix); len(kept) != 1 || !strings.HasPrefix(kept[0].Key, "exports/c10/") {
		t.Fatalf("exports of another character were touched: %+v", kept)
	}
	if n, err := exp.DeleteAll(ctx, "c1"); err != nil || n != 0 {
		t.Fatalf("second delete all: n=%d err=%v", n, err)
	}
}
