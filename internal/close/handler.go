package close

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/mappings"
	"github.com/defterdar/defterdar/internal/platform/httpx"
)

// Handler exposes the year close endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers close routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{year}", h.closeYear)
}

func (h *Handler) closeYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid year", err.Error())
		return
	}
	actorID, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	result, err := h.service.CloseYear(r.Context(), year, actorID)
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) problem(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidYear):
		httpx.Problem(w, http.StatusBadRequest, "Invalid year", err.Error())
	case errors.Is(err, ErrDraftsInYear):
		httpx.Problem(w, http.StatusConflict, "Year has unposted drafts", err.Error())
	case errors.Is(err, ledger.ErrPeriodLocked):
		httpx.Problem(w, http.StatusConflict, "Period locked", err.Error())
	case errors.Is(err, ledger.ErrEmptyEntry):
		httpx.Problem(w, http.StatusConflict, "Nothing to close", err.Error())
	case errors.Is(err, ledger.ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Year already closed", err.Error())
	case errors.Is(err, mappings.ErrMappingNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Retained earnings account not configured", err.Error())
	case errors.Is(err, ErrUnbalancedClosing):
		// Data corruption upstream; surface loudly.
		h.logger.Error("unbalanced closing entry", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Unbalanced closing entry", err.Error())
	default:
		h.logger.Error("year close failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
	}
}
