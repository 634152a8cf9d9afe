package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) ProcessQuery(ctx context.Context, sessionID, query string) (*service.QueryResult, error) {
	args := m.Called(ctx, sessionID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QueryResult), args.Error(1)
}

func (m *MockEngine) Retrieve(ctx context.Context, sessionID, query string, limit int) domain.RetrievalResult {
	args := m.Called(ctx, sessionID, query, limit)
	return args.Get(0).(domain.RetrievalResult)
}

func (m *MockEngine) History(ctx context.Context, sessionID string, before *domain.HistoryPosition, limit int) ([]domain.InteractionRecord, error) {
	args := m.Called(ctx, sessionID, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InteractionRecord), args.Error(1)
}

func (m *MockEngine) RecordInteraction(ctx context.Context, sessionID string, turnID int, query, response string) (*domain.InteractionRecord, error) {
	args := m.Called(ctx, sessionID, turnID, query, response)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InteractionRecord), args.Error(1)
}

func (m *MockEngine) SetFeedback(ctx context.Context, sessionID string, turnID, score int) error {
	args := m.Called(ctx, sessionID, turnID, score)
	return args.Error(0)
}

func (m *MockEngine) AddKnowledgeSource(ctx context.Context, src domain.KnowledgeSource) (service.IndexReport, error) {
	args := m.Called(ctx, src)
	return args.Get(0).(service.IndexReport), args.Error(1)
}

func (m *MockEngine) Info() service.EngineInfo {
	args := m.Called()
	return args.Get(0).(service.EngineInfo)
}

func (m *MockEngine) WelcomeMessage() string {
	args := m.Called()
	return args.String(0)
}

func requestWithSession(method, url, sessionID string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("sessionID", sessionID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
