package domain

import (
	"fmt"
	"strings"
)

// FixedHit is one vector-store match, closer hits have smaller distances.
type FixedHit struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Distance float64       `json:"distance"`
}

// RetrievalResult holds both kinds of context gathered for a query.
// Fixed hits always precede adaptive hits; they are never re-ranked against each other.
type RetrievalResult struct {
	Fixed    []FixedHit
	Adaptive []InteractionRecord
}

// IsEmpty reports whether nothing was retrieved
func (r RetrievalResult) IsEmpty() bool {
	return len(r.Fixed) == 0 && len(r.Adaptive) == 0
}

// Context renders the fused context block handed to the generator.
func (r RetrievalResult) Context() string {
	var b strings.Builder
	if len(r.Fixed) > 0 {
		b.WriteString("Relevant knowledge:\n")
		for i, hit := range r.Fixed {
			source := hit.Metadata.SourceName
			if source == "" {
				source = "unknown"
			}
			fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, source, hit.Text)
		}
	}
	if len(r.Adaptive) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Previous conversation (most recent first):\n")
		for _, rec := range r.Adaptive {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", rec.Query, rec.Response)
		}
	}
	return b.String()
}
