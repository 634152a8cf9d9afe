package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	classifySamplePages = 3
	minMeaningfulChars  = 100
	pageSeparator       = "\n\n"
)

var pdfMagic = []byte("%PDF-")

// Document is a knowledge source loaded into memory.
type Document struct {
	Name   string
	Source domain.SourceType
	Data   []byte
}

// IsPDF reports whether the document should go through PDF extraction.
func (d Document) IsPDF() bool {
	return d.Source == domain.SourceTypePDF ||
		bytes.HasPrefix(d.Data, pdfMagic) ||
		strings.EqualFold(filepath.Ext(d.Name), ".pdf")
}

// Result is the outcome of an extraction. Empty Text means no chunks should
// be produced; it is not an error.
type Result struct {
	Text string
	Kind domain.ExtractionKind
}

// Extractor runs the layout, basic and OCR strategies in order. It never
// returns an error: failed attempts are logged and the chain moves on.
type Extractor struct {
	layout PageExtractor
	basic  PageExtractor
	ocr    Recognizer
}

// New probes each capability in reg once and keeps the available ones.
func New(ctx context.Context, reg Registry) *Extractor {
	e := &Extractor{}
	if probe(ctx, reg.Layout) {
		e.layout = reg.Layout
	}
	if probe(ctx, reg.Basic) {
		e.basic = reg.Basic
	}
	if probe(ctx, reg.OCR) {
		e.ocr = reg.OCR
	}
	return e
}

func probe(ctx context.Context, c Capability) bool {
	if c == nil {
		return false
	}
	if !c.Available() {
		logging.From(ctx).Warn("extraction capability unavailable", "capability", c.Name())
		return false
	}
	return true
}

// HasOCR reports whether OCR can be used for scanned documents.
func (e *Extractor) HasOCR() bool {
	return e.ocr != nil
}

// Capabilities lists the names of the usable backends.
func (e *Extractor) Capabilities() []string {
	var names []string
	for _, c := range []Capability{e.layout, e.basic, e.ocr} {
		if c != nil {
			names = append(names, c.Name())
		}
	}
	return names
}

// Classify samples the first pages of a PDF. More than 100 non-whitespace
// characters of literal text means the document has a text layer; less means
// it is scanned. Non-PDF documents are always text.
func (e *Extractor) Classify(ctx context.Context, doc Document) domain.ExtractionKind {
	if !doc.IsPDF() {
		return domain.ExtractionText
	}

	sampler := e.basic
	if sampler == nil {
		sampler = e.layout
	}
	if sampler == nil {
		logging.From(ctx).Warn("no text extractor available, cannot classify document", "document", doc.Name)
		return domain.ExtractionUnknown
	}

	pages, err := sampler.ExtractPages(ctx, doc.Data, classifySamplePages)
	if err != nil {
		logFailure(ctx, goerr.Wrap(err, "document classification failed",
			goerr.V("document", doc.Name),
			goerr.V("strategy", sampler.Name()),
		))
		return domain.ExtractionUnknown
	}

	if countNonSpace(strings.Join(pages, "")) > minMeaningfulChars {
		return domain.ExtractionText
	}
	return domain.ExtractionScanned
}

// Extract returns the document text and its classification. OCR is only
// attempted for scanned documents when ocrIfNeeded is set and an OCR
// capability is available.
func (e *Extractor) Extract(ctx context.Context, doc Document, ocrIfNeeded bool) Result {
	if !doc.IsPDF() {
		return Result{Text: decodeText(doc.Data), Kind: domain.ExtractionText}
	}

	kind := e.Classify(ctx, doc)
	if kind == domain.ExtractionUnknown {
		return Result{Kind: kind}
	}

	text := e.literalText(ctx, doc)

	if kind == domain.ExtractionScanned && ocrIfNeeded {
		if e.ocr == nil {
			logging.From(ctx).Warn("document looks scanned but OCR is unavailable", "document", doc.Name)
		} else if ocrText := e.attempt(ctx, doc, e.ocr.Name(), func() ([]string, error) {
			return e.ocr.RecognizePages(ctx, doc.Data)
		}); ocrText != "" {
			return Result{Text: ocrText, Kind: kind}
		}
	}

	return Result{Text: text, Kind: kind}
}

func (e *Extractor) literalText(ctx context.Context, doc Document) string {
	var text string
	if e.layout != nil {
		text = e.attempt(ctx, doc, e.layout.Name(), func() ([]string, error) {
			return e.layout.ExtractPages(ctx, doc.Data, 0)
		})
		if countNonSpace(text) > minMeaningfulChars {
			return text
		}
	}
	if text == "" && e.basic != nil {
		text = e.attempt(ctx, doc, e.basic.Name(), func() ([]string, error) {
			return e.basic.ExtractPages(ctx, doc.Data, 0)
		})
	}
	return text
}

// attempt runs one strategy and joins its non-empty pages. Failures and
// panics are logged and yield an empty string.
func (e *Extractor) attempt(ctx context.Context, doc Document, strategy string, fn func() ([]string, error)) (text string) {
	defer func() {
		if r := recover(); r != nil {
			logFailure(ctx, goerr.New("extraction strategy panicked",
				goerr.V("document", doc.Name),
				goerr.V("strategy", strategy),
				goerr.V("panic", fmt.Sprint(r)),
			))
			text = ""
		}
	}()

	if err := ctx.Err(); err != nil {
		logFailure(ctx, goerr.Wrap(err, "extraction skipped", goerr.V("strategy", strategy)))
		return ""
	}

	pages, err := fn()
	if err != nil {
		logFailure(ctx, goerr.Wrap(err, "extraction strategy failed",
			goerr.V("document", doc.Name),
			goerr.V("strategy", strategy),
		))
		return ""
	}
	return joinPages(pages)
}

func logFailure(ctx context.Context, err error) {
	logging.From(ctx).Warn(err.Error(), "error", err)
}

func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, pageSeparator)
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�")
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
