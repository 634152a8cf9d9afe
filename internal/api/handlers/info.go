package handlers

import (
	"net/http"
	"time"

	"github.com/cloo-solutions/amm/internal/api"
	"github.com/cloo-solutions/amm/internal/service"
)

type InfoService interface {
	Info() service.EngineInfo
	WelcomeMessage() string
}

type InfoHandler struct {
	svc InfoService
	now func() time.Time
}

func NewInfoHandler(svc InfoService) *InfoHandler {
	return &InfoHandler{svc: svc, now: time.Now}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type WelcomeResponse struct {
	Message string `json:"message"`
}

func (h *InfoHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, &HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *InfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.svc.Info())
}

func (h *InfoHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, &WelcomeResponse{Message: h.svc.WelcomeMessage()})
}
