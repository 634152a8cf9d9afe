package extract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/m-mizutani/goerr/v2"
)

// defaultXTolerance is the horizontal gap, in points, below which adjacent
// glyphs are treated as part of the same word.
const defaultXTolerance = 3.0

// PDFText reads the embedded text layer of a PDF. In layout mode glyphs are
// regrouped into rows and words by position; in basic mode the content
// stream order is used as is.
type PDFText struct {
	layout     bool
	xTolerance float64
}

func NewBasicExtractor() *PDFText {
	return &PDFText{}
}

func NewLayoutExtractor() *PDFText {
	return &PDFText{layout: true, xTolerance: defaultXTolerance}
}

func (p *PDFText) Name() string {
	if p.layout {
		return "pdf-layout"
	}
	return "pdf-basic"
}

// Available is always true; the reader is pure Go.
func (p *PDFText) Available() bool {
	return true
}

func (p *PDFText) ExtractPages(ctx context.Context, data []byte, maxPages int) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = goerr.New("pdf reader panicked", goerr.V("panic", fmt.Sprint(r)))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open pdf")
	}

	n := reader.NumPage()
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}

	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.pageText(page)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read page text", goerr.V("page", i))
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func (p *PDFText) pageText(page pdf.Page) (string, error) {
	if !p.layout {
		return page.GetPlainText(nil)
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}
	return layoutText(rows, p.xTolerance), nil
}

// layoutText orders rows top to bottom and glyphs left to right, inserting a
// space wherever the gap between glyphs exceeds tolerance.
func layoutText(rows pdf.Rows, tolerance float64) string {
	ordered := append(pdf.Rows(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position > ordered[j].Position
	})

	lines := make([]string, 0, len(ordered))
	for _, row := range ordered {
		glyphs := append([]pdf.Text(nil), row.Content...)
		sort.SliceStable(glyphs, func(i, j int) bool {
			return glyphs[i].X < glyphs[j].X
		})

		var b strings.Builder
		prevEnd := math.Inf(-1)
		for _, g := range glyphs {
			if b.Len() > 0 && g.X-prevEnd > tolerance {
				b.WriteByte(' ')
			}
			b.WriteString(g.S)
			prevEnd = g.X + g.W
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
