package service

import (
	"strings"

	"github.com/cloo-solutions/amm/internal/domain"
)

// BuildPrompt renders the retrieved context followed by the question.
func BuildPrompt(query string, retrieval domain.RetrievalResult) string {
	var b strings.Builder
	if block := retrieval.Context(); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(query))
	return b.String()
}
