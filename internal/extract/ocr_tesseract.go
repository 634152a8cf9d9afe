//go:build ocr

package extract

import (
	"context"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/m-mizutani/goerr/v2"
	"github.com/otiai10/gosseract/v2"
)

const renderDPI = 300

// TesseractOCR renders pages with MuPDF and recognizes them with Tesseract.
type TesseractOCR struct {
	language string
}

func NewOCR(language string) Recognizer {
	if language == "" {
		language = "eng"
	}
	return &TesseractOCR{language: language}
}

func (t *TesseractOCR) Name() string {
	return "tesseract"
}

func (t *TesseractOCR) Available() bool {
	return strings.TrimSpace(gosseract.Version()) != ""
}

func (t *TesseractOCR) RecognizePages(ctx context.Context, data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open pdf for rendering")
	}
	defer doc.Close()

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.language); err != nil {
		return nil, goerr.Wrap(err, "failed to set ocr language", goerr.V("language", t.language))
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImagePNG(i, renderDPI)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to render page", goerr.V("page", i+1))
		}
		if err := client.SetImageFromBytes(img); err != nil {
			return nil, goerr.Wrap(err, "failed to load page image", goerr.V("page", i+1))
		}
		text, err := client.Text()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to recognize page", goerr.V("page", i+1))
		}
		pages = append(pages, text)
	}
	return pages, nil
}
