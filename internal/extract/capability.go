// Package extract recovers plain text from knowledge documents.
package extract

import "context"

// Capability is an optional extraction backend. Available is probed once
// when an Extractor is built.
type Capability interface {
	Name() string
	Available() bool
}

// PageExtractor returns the literal text layer of a PDF, one string per page.
// maxPages <= 0 means every page.
type PageExtractor interface {
	Capability
	ExtractPages(ctx context.Context, data []byte, maxPages int) ([]string, error)
}

// Recognizer renders PDF pages and runs optical character recognition on them.
type Recognizer interface {
	Capability
	RecognizePages(ctx context.Context, data []byte) ([]string, error)
}

// Registry lists the capabilities offered to an Extractor. Nil entries are
// treated as unavailable.
type Registry struct {
	Layout PageExtractor
	Basic  PageExtractor
	OCR    Recognizer
}

// DefaultRegistry wires the built-in backends. OCR is only functional in
// binaries built with the ocr tag.
func DefaultRegistry(ocrLanguage string) Registry {
	return Registry{
		Layout: NewLayoutExtractor(),
		Basic:  NewBasicExtractor(),
		OCR:    NewOCR(ocrLanguage),
	}
}
