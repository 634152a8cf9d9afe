package server

import (
	"net/http"

	"github.com/cloo-solutions/amm/internal/api/handlers"
	"github.com/cloo-solutions/amm/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// Engine is everything the HTTP surface needs from a running design.
type Engine interface {
	handlers.QueryService
	handlers.SessionService
	handlers.KnowledgeService
	handlers.InfoService
}

type RouterConfig struct {
	Engine       Engine
	APIToken     string
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes == 0 {
		maxBodyBytes = 5 * 1024 * 1024
	}

	info := handlers.NewInfoHandler(cfg.Engine)
	query := handlers.NewQueryHandler(cfg.Engine)
	sessions := handlers.NewSessionHandler(cfg.Engine)
	knowledge := handlers.NewKnowledgeHandler(cfg.Engine)

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", info.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.APIToken))

		r.Get("/info", info.Info)
		r.Get("/welcome", info.Welcome)

		r.Post("/query", query.Query)
		r.Post("/generate", query.Generate)
		r.Post("/retrieve", query.Retrieve)

		r.Post("/knowledge", knowledge.Add)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/interactions", sessions.History)
			r.Post("/interactions", sessions.Record)
			r.Post("/feedback", sessions.Feedback)
		})
	})

	return r
}
