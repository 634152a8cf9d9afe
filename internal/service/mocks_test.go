package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEmbedder mocks an embedding provider
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error) {
	args := m.Called(ctx, text, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockGenerator mocks a generative model
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockFetcher mocks object storage
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// keywordEmbedder maps text onto a fixed vocabulary so similar texts land
// close together.
type keywordEmbedder struct {
	vocab []string
	fail  map[string]bool
	calls []domain.TaskType
}

func (k *keywordEmbedder) Embed(_ context.Context, text string, task domain.TaskType) ([]float32, error) {
	k.calls = append(k.calls, task)
	if k.fail[text] {
		return nil, errors.New("embedding service unavailable")
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(k.vocab)+1)
	for i, word := range k.vocab {
		vec[i] = float32(strings.Count(lower, word))
	}
	vec[len(k.vocab)] = 0.01
	return vec, nil
}
