package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/amm/internal/api"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/pagination"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type SessionService interface {
	History(ctx context.Context, sessionID string, before *domain.HistoryPosition, limit int) ([]domain.InteractionRecord, error)
	RecordInteraction(ctx context.Context, sessionID string, turnID int, query, response string) (*domain.InteractionRecord, error)
	SetFeedback(ctx context.Context, sessionID string, turnID, score int) error
}

type SessionHandler struct {
	svc SessionService
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type InteractionResponse struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	TurnID        int    `json:"turn_id"`
	Query         string `json:"query"`
	Response      string `json:"response"`
	Timestamp     string `json:"timestamp"`
	FeedbackScore *int   `json:"feedback_score,omitempty"`
}

func interactionToResponse(rec *domain.InteractionRecord) *InteractionResponse {
	return &InteractionResponse{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		TurnID:        rec.TurnID,
		Query:         rec.Query,
		Response:      rec.Response,
		Timestamp:     rec.Timestamp.Format(time.RFC3339Nano),
		FeedbackScore: rec.FeedbackScore,
	}
}

type RecordInteractionRequest struct {
	TurnID   int    `json:"turn_id"`
	Query    string `json:"query"`
	Response string `json:"response"`
}

type FeedbackRequest struct {
	TurnID int  `json:"turn_id"`
	Score  *int `json:"score"`
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	records, err := h.svc.History(r.Context(), sessionID, cursor.Position(), limit+1)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	page := pagination.NewPage(records, limit, func(rec domain.InteractionRecord) domain.HistoryPosition {
		return rec.Position()
	})

	items := make([]*InteractionResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, interactionToResponse(&page.Items[i]))
	}
	resp := pagination.PageResult[*InteractionResponse]{Items: items, Cursor: page.Cursor, HasMore: page.HasMore}
	api.Success(w, http.StatusOK, resp)
}

func (h *SessionHandler) Record(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req RecordInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TurnID < 1 {
		api.Error(w, http.StatusBadRequest, "turn_id must be positive")
		return
	}

	rec, err := h.svc.RecordInteraction(r.Context(), sessionID, req.TurnID, req.Query, req.Response)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, interactionToResponse(rec))
}

func (h *SessionHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TurnID < 1 {
		api.Error(w, http.StatusBadRequest, "turn_id must be positive")
		return
	}
	if req.Score == nil {
		api.Error(w, http.StatusBadRequest, "score is required")
		return
	}

	if err := h.svc.SetFeedback(r.Context(), sessionID, req.TurnID, *req.Score); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
