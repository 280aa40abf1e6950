package mappings

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/defterdar/defterdar/internal/platform/httpx"
)

// Handler exposes posting-account configuration.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers account mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/", h.upsert)
}

type upsertRequest struct {
	Module    string `json:"module"`
	Key       string `json:"key"`
	AccountID int64  `json:"account_id"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list mappings", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Module) == "" || strings.TrimSpace(req.Key) == "" || req.AccountID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid mapping", "module, key and account_id are required")
		return
	}
	mapping := AccountMapping{Module: req.Module, Key: req.Key, AccountID: req.AccountID}
	if err := h.repo.Upsert(r.Context(), mapping); err != nil {
		h.logger.Error("upsert mapping", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, mapping)
}
