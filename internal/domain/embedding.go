package domain

// TaskType tells the embedding service which side of retrieval a text is on
type TaskType string

const (
	TaskDocument TaskType = "retrieval_document"
	TaskQuery    TaskType = "retrieval_query"
)

// EmbeddedRecord pairs a chunk's text and metadata with its vector.
// Records with a nil or empty vector are never stored.
type EmbeddedRecord struct {
	ChunkID  string
	Vector   []float32
	Text     string
	Metadata ChunkMetadata
}

// Dimensions returns the vector length
func (r EmbeddedRecord) Dimensions() int {
	return len(r.Vector)
}
