package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ether-stories/internal/engine"
	"ether-stories/internal/interfaces"
	"ether-stories/internal/models"
	"ether-stories/internal/storage"
)

// Handlers exposes story generation over HTTP. Runs execute in the
// background; clients follow progress via the run-state endpoint or the
// websocket hub.
type Handlers struct {
	coordinator *engine.RunCoordinator
	store       interfaces.RunStore
	progress    *storage.RedisStore // optional
	metrics     *engine.Metrics
	logger      *slog.Logger
}

// NewHandlers wires the HTTP handlers. progress may be nil when Redis is
// not configured.
func NewHandlers(coordinator *engine.RunCoordinator, store interfaces.RunStore, progress *storage.RedisStore, metrics *engine.Metrics, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		coordinator: coordinator,
		store:       store,
		progress:    progress,
		metrics:     metrics,
		logger:      logger,
	}
}

// GenerateRequest is the payload accepted by the generate endpoint.
type GenerateRequest struct {
	StoryID string      `json:"story_id,omitempty"`
	Plan    models.Plan `json:"plan"`
}

// GenerateResponse acknowledges a started run.
type GenerateResponse struct {
	StoryID string `json:"story_id"`
}

// StateResponse is the run-state payload, optionally decorated with cached
// progress.
type StateResponse struct {
	State    *models.RunState          `json:"state"`
	Complete bool                      `json:"complete"`
	Phase    string                    `json:"phase,omitempty"`
	Events   []interfaces.ChapterEvent `json:"events,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "ether-stories",
	})
}

// GenerateStory validates the plan and starts a run in the background.
func (h *Handlers) GenerateStory(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := req.Plan.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	storyID := req.StoryID
	if storyID == "" {
		storyID = newStoryID()
	}

	// The run outlives the request; it carries its own context.
	go func() {
		state, err := h.coordinator.Run(context.Background(), storyID, req.Plan)
		switch {
		case err != nil:
			h.logger.Error("run aborted", "story_id", storyID, "err", err)
		case !state.Complete():
			h.logger.Warn("run finished with failed chapters", "story_id", storyID)
		default:
			h.logger.Info("run finished", "story_id", storyID, "chapters", len(state.Chapters))
		}
	}()

	writeJSON(w, http.StatusAccepted, GenerateResponse{StoryID: storyID})
}

// GetRunState returns the persisted run state plus cached progress when a
// Redis overlay is configured.
func (h *Handlers) GetRunState(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "story_id")
	if storyID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing story_id"})
		return
	}

	state, err := h.store.Load(r.Context(), storyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := StateResponse{State: state, Complete: state.Complete() && len(state.Chapters) > 0}
	if h.progress != nil {
		if phase, err := h.progress.Phase(r.Context(), storyID); err == nil {
			resp.Phase = phase
		}
		if events, err := h.progress.RecentEvents(r.Context(), storyID, 50); err == nil {
			resp.Events = events
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMetrics returns engine counters.
func (h *Handlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		return
	}
}

func newStoryID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
