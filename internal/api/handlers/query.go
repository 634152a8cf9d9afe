package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/amm/internal/api"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/service"
	"github.com/google/uuid"
)

const maxRetrieveLimit = 50

type QueryService interface {
	ProcessQuery(ctx context.Context, sessionID, query string) (*service.QueryResult, error)
	Retrieve(ctx context.Context, sessionID, query string, limit int) domain.RetrievalResult
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	SessionID      string `json:"session_id"`
	Query          string `json:"query"`
	IncludeContext bool   `json:"include_context,omitempty"`
}

type QueryResponse struct {
	Response  string             `json:"response"`
	SessionID string             `json:"session_id"`
	TurnID    int                `json:"turn_id"`
	Timestamp string             `json:"timestamp"`
	Context   *RetrievalResponse `json:"context,omitempty"`
}

type RetrieveRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
}

type FixedHitResponse struct {
	Text     string               `json:"text"`
	Distance float64              `json:"distance"`
	Metadata domain.ChunkMetadata `json:"metadata"`
}

type RetrievalResponse struct {
	Fixed    []*FixedHitResponse    `json:"fixed"`
	Adaptive []*InteractionResponse `json:"adaptive"`
}

func retrievalToResponse(r domain.RetrievalResult) *RetrievalResponse {
	resp := &RetrievalResponse{
		Fixed:    make([]*FixedHitResponse, 0, len(r.Fixed)),
		Adaptive: make([]*InteractionResponse, 0, len(r.Adaptive)),
	}
	for _, hit := range r.Fixed {
		resp.Fixed = append(resp.Fixed, &FixedHitResponse{Text: hit.Text, Distance: hit.Distance, Metadata: hit.Metadata})
	}
	for i := range r.Adaptive {
		resp.Adaptive = append(resp.Adaptive, interactionToResponse(&r.Adaptive[i]))
	}
	return resp
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.SessionID) == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.svc.ProcessQuery(r.Context(), req.SessionID, req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &QueryResponse{
		Response:  result.Response,
		SessionID: result.SessionID,
		TurnID:    result.TurnID,
		Timestamp: result.Timestamp.Format(time.RFC3339Nano),
	}
	if req.IncludeContext {
		resp.Context = retrievalToResponse(result.Retrieval)
	}
	api.Success(w, http.StatusOK, resp)
}

type GenerateRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type GenerateMetadata struct {
	QueryID   string `json:"query_id"`
	SessionID string `json:"session_id"`
	TurnID    int    `json:"turn_id"`
	Timestamp string `json:"timestamp"`
}

type GenerateResponse struct {
	Response string           `json:"response"`
	Metadata GenerateMetadata `json:"metadata"`
}

// Generate answers a single query. Without a session id each call starts a
// fresh session.
func (h *QueryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	queryID := uuid.NewString()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = queryID
	}

	result, err := h.svc.ProcessQuery(r.Context(), sessionID, req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &GenerateResponse{
		Response: result.Response,
		Metadata: GenerateMetadata{
			QueryID:   queryID,
			SessionID: result.SessionID,
			TurnID:    result.TurnID,
			Timestamp: result.Timestamp.Format(time.RFC3339Nano),
		},
	})
}

func (h *QueryHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit < 0 || req.Limit > maxRetrieveLimit {
		api.Error(w, http.StatusBadRequest, "limit must be between 0 and 50")
		return
	}

	result := h.svc.Retrieve(r.Context(), req.SessionID, req.Query, req.Limit)
	api.Success(w, http.StatusOK, retrievalToResponse(result))
}
