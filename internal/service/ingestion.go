package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/amm/internal/chunking"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/extract"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/cloo-solutions/amm/internal/storage"
	"github.com/cloo-solutions/amm/internal/telemetry"
)

// IngestionConfig controls how knowledge sources become chunks.
type IngestionConfig struct {
	Chunking chunking.Config
	// OCR allows recognition of scanned PDFs when a recognizer is available.
	OCR bool
	// BaseDir resolves relative source paths.
	BaseDir string
}

// IngestionService loads knowledge sources, extracts their text and splits
// it into chunks.
type IngestionService struct {
	extractor TextExtractor
	fetcher   ObjectFetcher
	cfg       IngestionConfig
}

// NewIngestionService creates the service. fetcher may be nil when no object
// storage is configured; s3:// sources then fail to load.
func NewIngestionService(extractor TextExtractor, fetcher ObjectFetcher, cfg IngestionConfig) (*IngestionService, error) {
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, err
	}
	return &IngestionService{extractor: extractor, fetcher: fetcher, cfg: cfg}, nil
}

// Load reads a knowledge source into memory.
func (s *IngestionService) Load(ctx context.Context, src domain.KnowledgeSource) (extract.Document, error) {
	if err := src.Validate(); err != nil {
		return extract.Document{}, err
	}

	doc := extract.Document{Name: src.DisplayName(), Source: src.Type}
	if src.Type == domain.SourceTypeText && src.Content != "" {
		doc.Data = []byte(src.Content)
		return doc, nil
	}

	if storage.IsS3URI(src.Path) {
		if s.fetcher == nil {
			return doc, domain.ErrStorageUnavailable
		}
		bucket, key, err := storage.ParseS3URI(src.Path)
		if err != nil {
			return doc, err
		}
		data, err := s.fetcher.Fetch(ctx, bucket, key)
		if err != nil {
			return doc, fmt.Errorf("failed to fetch %s: %w", src.Path, err)
		}
		doc.Data = data
		return doc, nil
	}

	path := src.Path
	if !filepath.IsAbs(path) && s.cfg.BaseDir != "" {
		path = filepath.Join(s.cfg.BaseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, domain.NewDomainErrorWithCause(domain.ErrDocumentNotFound.Code, domain.ErrDocumentNotFound.Message, err)
	}
	doc.Data = data
	return doc, nil
}

// Ingest turns one knowledge source into chunks. An unreadable document
// yields no chunks and no error; only a failure to load the source is returned.
func (s *IngestionService) Ingest(ctx context.Context, src domain.KnowledgeSource) ([]domain.KnowledgeChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanIngest, telemetry.SpanAttributes{Source: src.DisplayName(), Operation: "ingest"})
	defer span.End()

	doc, err := s.Load(ctx, src)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return s.IngestDocument(ctx, doc)
}

// IngestDocument extracts and chunks an already loaded document.
func (s *IngestionService) IngestDocument(ctx context.Context, doc extract.Document) ([]domain.KnowledgeChunk, error) {
	logger := logging.From(ctx)

	result := s.extractor.Extract(ctx, doc, s.cfg.OCR)
	texts, err := chunking.Chunk(result.Text, s.cfg.Chunking)
	if err != nil {
		return nil, err
	}

	source := doc.Source
	if doc.IsPDF() {
		source = domain.SourceTypePDF
	}
	chunks := domain.BuildChunks(source, doc.Name, result.Kind, texts)

	logger.Info("document ingested",
		"document", doc.Name,
		"extraction", result.Kind,
		"chars", len([]rune(result.Text)),
		"chunks", len(chunks),
	)
	return chunks, nil
}
