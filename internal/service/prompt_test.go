package service

import (
	"testing"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("question only", func(t *testing.T) {
		assert.Equal(t, "Question: what is the refund window?", BuildPrompt("  what is the refund window? ", domain.RetrievalResult{}))
	})

	t.Run("context precedes question", func(t *testing.T) {
		prompt := BuildPrompt("and for gifts?", domain.RetrievalResult{
			Fixed: []domain.FixedHit{{Text: "Refunds within 30 days.", Metadata: domain.ChunkMetadata{SourceName: "policy.pdf"}}},
			Adaptive: []domain.InteractionRecord{
				{Query: "refund window?", Response: "30 days."},
			},
		})

		assert.Equal(t, "Relevant knowledge:\n"+
			"[1] (policy.pdf) Refunds within 30 days.\n"+
			"\n"+
			"Previous conversation (most recent first):\n"+
			"User: refund window?\n"+
			"Assistant: 30 days.\n"+
			"\n"+
			"Question: and for gifts?", prompt)
	})
}
