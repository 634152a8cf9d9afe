package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/amm/internal/api"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/service"
)

type KnowledgeService interface {
	AddKnowledgeSource(ctx context.Context, src domain.KnowledgeSource) (service.IndexReport, error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type AddKnowledgeRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Path    string `json:"path,omitempty"`
}

type AddKnowledgeResponse struct {
	Name   string              `json:"name"`
	Report service.IndexReport `json:"report"`
}

func (h *KnowledgeHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" {
		api.Error(w, http.StatusBadRequest, "type is required")
		return
	}
	src := domain.KnowledgeSource{
		Name:    req.Name,
		Type:    domain.SourceType(req.Type),
		Content: req.Content,
		Path:    req.Path,
	}
	if err := src.Validate(); err != nil {
		api.HandleError(w, err)
		return
	}

	report, err := h.svc.AddKnowledgeSource(r.Context(), src)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, &AddKnowledgeResponse{Name: src.DisplayName(), Report: report})
}
