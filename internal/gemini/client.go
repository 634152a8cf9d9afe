// Package gemini adapts the Google Generative AI SDK to the embedding and
// generation contracts.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultChatModel      = "gemini-1.5-flash-latest"
)

var (
	ErrNoAPIKey      = errors.New("gemini api key is required")
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrEmptyResponse = errors.New("gemini returned no text")
)

type Config struct {
	APIKey         string `masq:"secret"`
	EmbeddingModel string
}

// Client embeds with retrieval task types and generates with the design's
// model settings.
type Client struct {
	client         *genai.Client
	embeddingModel string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Client{client: client, embeddingModel: model}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	em := c.client.EmbeddingModel(c.embeddingModel)
	em.TaskType = TaskType(task)

	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	name := req.Model.Name
	if name == "" {
		name = DefaultChatModel
	}
	model := c.client.GenerativeModel(name)
	Configure(model, req)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	return ResponseText(resp)
}

// TaskType maps a retrieval side onto the SDK's task type.
func TaskType(task domain.TaskType) genai.TaskType {
	switch task {
	case domain.TaskDocument:
		return genai.TaskTypeRetrievalDocument
	case domain.TaskQuery:
		return genai.TaskTypeRetrievalQuery
	}
	return genai.TaskTypeUnspecified
}

// Configure applies the system instruction and sampling settings.
func Configure(model *genai.GenerativeModel, req domain.GenerationRequest) {
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}
	s := req.Model
	if s.Temperature != nil {
		model.SetTemperature(*s.Temperature)
	}
	if s.TopP > 0 {
		model.SetTopP(s.TopP)
	}
	if s.TopK > 0 {
		model.SetTopK(s.TopK)
	}
	if s.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(s.MaxOutputTokens)
	}
}

// ResponseText concatenates the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
