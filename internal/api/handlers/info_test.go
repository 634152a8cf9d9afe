package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/amm/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoHandler_Health(t *testing.T) {
	handler := NewInfoHandler(new(MockEngine))
	handler.now = func() time.Time { return time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC) }

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data.Status)
	assert.Equal(t, "2026-07-01T12:00:00Z", resp.Data.Timestamp)
}

func TestInfoHandler_Info(t *testing.T) {
	mockSvc := new(MockEngine)
	mockSvc.On("Info").Return(service.EngineInfo{
		ID:           "d-1",
		Name:         "Store Assistant",
		Capabilities: service.Capabilities{FixedKnowledge: true, AdaptiveMemory: true},
	})
	handler := NewInfoHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.Info(w, httptest.NewRequest(http.MethodGet, "/info", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Store Assistant"`)
	assert.Contains(t, w.Body.String(), `"fixed_knowledge":true`)
	assert.Contains(t, w.Body.String(), `"generation":false`)
}

func TestInfoHandler_Welcome(t *testing.T) {
	mockSvc := new(MockEngine)
	mockSvc.On("WelcomeMessage").Return("Hi! Ask me about the store.")
	handler := NewInfoHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.Welcome(w, httptest.NewRequest(http.MethodGet, "/welcome", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ask me about the store.")
}
