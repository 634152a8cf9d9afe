//go:build !ocr

package extract

import (
	"context"
	"errors"
)

var errOCRNotBuilt = errors.New("binary built without ocr support")

type unavailableOCR struct{}

// NewOCR returns a recognizer that reports itself unavailable. Build with
// -tags ocr to link Tesseract.
func NewOCR(string) Recognizer {
	return unavailableOCR{}
}

func (unavailableOCR) Name() string    { return "tesseract" }
func (unavailableOCR) Available() bool { return false }

func (unavailableOCR) RecognizePages(context.Context, []byte) ([]string, error) {
	return nil, errOCRNotBuilt
}
