package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vacme/internal/vmdl"
	"vacme/internal/vmdl/models"
)

// Handler is the thin ops surface: health, metrics and a manual batch
// trigger. It delegates to the runner without embedding business logic.
type Handler struct {
	runner *vmdl.Runner
	log    *zap.Logger
}

func New(runner *vmdl.Runner, log *zap.Logger) *Handler {
	return &Handler{runner: runner, log: log}
}

// Routes wires all ops endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/run/{disease}", h.handleRun)
	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	disease := models.Disease(chi.URLParam(r, "disease"))

	count, err := h.runner.Trigger(r.Context(), disease)
	switch {
	case errors.Is(err, vmdl.ErrUnknownDisease):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown disease"})
	case errors.Is(err, vmdl.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run already in progress"})
	case err != nil:
		h.log.Error("manual registry batch failed",
			zap.String("disease", string(disease)),
			zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "batch run failed"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"disease":  string(disease),
			"uploaded": count,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
