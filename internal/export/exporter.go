package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/benbjohnson/clock"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"charsheet/internal/blob"
	"charsheet/pkg/domain"
)

// KeyPrefix is the blob key prefix of every exported document.
const KeyPrefix = "exports/"

// ErrUnsupportedFormat is wrapped in a RenderError when no renderer is
// registered for the requested format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Artifact describes a stored export.
type Artifact struct {
	Key         string
	Format      Format
	ContentType string
	Size        int64
	URL         string
	CreatedAt   time.Time
}

// Exporter renders documents in memory and writes successful renders to a
// blob store under exports/<character-id>/<slug>-<timestamp>.<ext>.
type Exporter struct {
	store     blob.Store
	renderers map[Format]Renderer
	clock     clock.Clock
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock sets the time source used for keys and PDF metadata.
func WithClock(c clock.Clock) Option {
	return func(e *Exporter) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithRenderer registers or replaces the renderer for format.
func WithRenderer(format Format, r Renderer) Option {
	return func(e *Exporter) {
		if r != nil {
			e.renderers[format] = r
		}
	}
}

// NewExporter returns an exporter with the PDF and Markdown renderers.
func NewExporter(store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:     store,
		renderers: map[Format]Renderer{FormatMarkdown: MarkdownRenderer{}},
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, ok := e.renderers[FormatPDF]; !ok {
		e.renderers[FormatPDF] = RendererFunc(func(w io.Writer, c domain.Character, s domain.Status) error {
			return PDFRenderer{CreatedAt: e.clock.Now().UTC()}.Render(w, c, s)
		})
	}
	return e
}

// Export renders c and s in format and stores the result. A render failure
// returns a *domain.RenderError and stores nothing.
func (e *Exporter) Export(ctx context.Context, c domain.Character, s domain.Status, format Format) (Artifact, error) {
	r, ok := e.renderers[format]
	if !ok {
		return Artifact{}, &domain.RenderError{Format: string(format), Err: ErrUnsupportedFormat}
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, c, s); err != nil {
		return Artifact{}, &domain.RenderError{Format: string(format), Err: err}
	}

	now := e.clock.Now().UTC()
	base := fmt.Sprintf("%s%s/%s-%s", KeyPrefix, ownerKey(c.ID), Slug(c.Name), now.Format("20060102T150405Z"))
	opts := blob.PutOptions{
		ContentType: format.ContentType(),
		Metadata:    map[string]string{"character-id": c.ID, "format": string(format)},
	}
	var (
		info blob.Info
		err  error
	)
	for attempt := 0; attempt < 10; attempt++ {
		key := base + "." + format.Extension()
		if attempt > 0 {
			key = fmt.Sprintf("%s-%d.%s", base, attempt, format.Extension())
		}
		info, err = e.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), opts)
		if !errors.Is(err, blob.ErrExists) {
			break
		}
	}
	if err != nil {
		return Artifact{}, &domain.PersistenceError{Op: "put_export", ID: c.ID, Err: err}
	}

	url := info.URL
	if signed, err := e.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{}); err == nil {
		url = signed
	}
	return Artifact{
		Key:         info.Key,
		Format:      format,
		ContentType: opts.ContentType,
		Size:        info.Size,
		URL:         url,
		CreatedAt:   now,
	}, nil
}

// List returns the stored exports of a character, oldest key first.
func (e *Exporter) List(ctx context.Context, characterID string) ([]blob.Info, error) {
	return e.store.List(ctx, KeyPrefix+ownerKey(characterID)+"/")
}

// DeleteAll removes every stored export of a character and reports how many
// documents were deleted. Keys that vanish concurrently are not an error.
func (e *Exporter) DeleteAll(ctx context.Context, characterID string) (int, error) {
	infos, err := e.List(ctx, characterID)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "list_exports", ID: characterID, Err: err}
	}
	deleted := 0
	for _, info := range infos {
		existed, err := e.store.Delete(ctx, info.Key)
		if err != nil && !errors.Is(err, blob.ErrNotFound) {
			return deleted, &domain.PersistenceError{Op: "delete_export", ID: characterID, Err: err}
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

func ownerKey(id string) string {
	if id == "" {
		return "unsaved"
	}
	return id
}

// Slug turns a character name into a lowercase ASCII file name fragment.
func Slug(name string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "character"
	}
	return slug
}
