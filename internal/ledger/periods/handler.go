package periods

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/defterdar/defterdar/internal/platform/httpx"
)

// Handler exposes period lock management.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/lock", h.lock)
	r.Post("/unlock", h.unlock)
}

type lockRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	locks, err := h.service.List(r.Context())
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": locks})
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	lock, err := h.service.Lock(r.Context(), req.Year, req.Month, actorID(r))
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lock)
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	lock, err := h.service.Unlock(r.Context(), req.Year, req.Month, actorID(r))
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lock)
}

func (h *Handler) problem(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid period", err.Error())
	case errors.Is(err, ErrAlreadyLocked):
		httpx.Problem(w, http.StatusConflict, "Period already locked", err.Error())
	case errors.Is(err, ErrUnpostedEntries):
		httpx.Problem(w, http.StatusConflict, "Period has draft entries", err.Error())
	default:
		h.logger.Error("period request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
	}
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
