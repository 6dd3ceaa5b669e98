// Package api is the HTTP surface the host application talks to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

type Config struct {
	Addr            string        `split_words:"true" default:":8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"10s"`
	WriteTimeout    time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	MaxBodyBytes    int64         `split_words:"true" default:"1048576"`
}

// Engine is the part of the turn engine the HTTP surface needs.
type Engine interface {
	HandleTurn(ctx context.Context, turn contractx.Turn) (contractx.TurnResult, error)
	EndConversation(ctx context.Context, conversationID, reason string) error
}

type turnRequest struct {
	TenantID   string               `json:"tenantId"`
	SessionID  string               `json:"sessionId"`
	CustomerID string               `json:"customerId"`
	Channel    string               `json:"channel"`
	Text       string               `json:"text"`
	History    []contractx.Message  `json:"history"`
	Partition  *contractx.Partition `json:"partition"`
}

type endRequest struct {
	Reason string `json:"reason"`
}

type Handler struct {
	engine       Engine
	maxBodyBytes int64
}

func NewHandler(engine Engine, cfg Config) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{engine: engine, maxBodyBytes: cfg.MaxBodyBytes}
}

// Routes mounts the turn, lifecycle, health and metrics endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", h.Turn)
		r.Post("/conversations/{id}/end", h.End)
	})
	return r
}

// Turn handles POST /v1/turns
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.engine.HandleTurn(r.Context(), contractx.Turn{
		TenantID:   req.TenantID,
		SessionID:  req.SessionID,
		CustomerID: req.CustomerID,
		Channel:    req.Channel,
		Text:       req.Text,
		History:    req.History,
		Partition:  req.Partition,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, orchestrator.ErrInvalidSession), errors.Is(err, orchestrator.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("handle turn failed")
		writeError(w, http.StatusInternalServerError, "failed to handle turn")
	}
}

// End handles POST /v1/conversations/{id}/end
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	id := chi.URLParam(r, "id")
	if err := h.engine.EndConversation(r.Context(), id, req.Reason); err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("conversation_id", id).Msg("end conversation failed")
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
