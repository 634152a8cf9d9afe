package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SourceType represents where a knowledge chunk came from
type SourceType string

const (
	SourceTypePDF  SourceType = "pdf"
	SourceTypeText SourceType = "text"
	SourceTypeFile SourceType = "file"
)

// IsValid reports whether the source type is one of the known kinds
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypePDF, SourceTypeText, SourceTypeFile:
		return true
	}
	return false
}

// ExtractionKind classifies a document by how its text could be recovered
type ExtractionKind string

const (
	ExtractionText    ExtractionKind = "text"
	ExtractionScanned ExtractionKind = "scanned"
	ExtractionUnknown ExtractionKind = "unknown"
)

// ChunkMetadata is attached verbatim to every stored chunk.
type ChunkMetadata struct {
	SourceName     string         `json:"source_name"`
	ContentType    SourceType     `json:"content_type"`
	ExtractionType ExtractionKind `json:"extraction_type,omitempty"`
	ChunkIndex     int            `json:"chunk_index"`
	ChunkSize      int            `json:"chunk_size"`
	TotalChunks    int            `json:"total_chunks"`
}

// KnowledgeChunk is a bounded segment of extracted document text.
// Values are immutable once built.
type KnowledgeChunk struct {
	ID         string
	Text       string
	SourceType SourceType
	Metadata   ChunkMetadata
}

// NewChunkID returns an identifier of the form <source>_<8 hex chars>.
func NewChunkID(source SourceType) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s", source, hex[:8])
}

// BuildChunks wraps chunk texts from a single source into KnowledgeChunks,
// numbering them in encounter order.
func BuildChunks(source SourceType, sourceName string, kind ExtractionKind, texts []string) []KnowledgeChunk {
	chunks := make([]KnowledgeChunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, KnowledgeChunk{
			ID:         NewChunkID(source),
			Text:       text,
			SourceType: source,
			Metadata: ChunkMetadata{
				SourceName:     sourceName,
				ContentType:    source,
				ExtractionType: kind,
				ChunkIndex:     i,
				ChunkSize:      len([]rune(text)),
				TotalChunks:    len(texts),
			},
		})
	}
	return chunks
}
