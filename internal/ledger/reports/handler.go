package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/defterdar/defterdar/internal/platform/httpx"
)

// Handler serves balance projections.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/accounts/{id}/ledger", h.accountLedger)
	r.Get("/contacts/{id}/statement", h.contactStatement)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.logger.Error("trial balance failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) accountLedger(w http.ResponseWriter, r *http.Request) {
	id, from, to, ok := h.rangeParams(w, r)
	if !ok {
		return
	}
	ledger, err := h.service.AccountLedger(r.Context(), id, from, to)
	if err != nil {
		h.logger.Error("account ledger failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) contactStatement(w http.ResponseWriter, r *http.Request) {
	id, from, to, ok := h.rangeParams(w, r)
	if !ok {
		return
	}
	statement, err := h.service.ContactStatement(r.Context(), id, from, to)
	if err != nil {
		h.logger.Error("contact statement failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

// rangeParams parses {id} plus the from/to query range. Defaults cover
// the current calendar year.
func (h *Handler) rangeParams(w http.ResponseWriter, r *http.Request) (int64, time.Time, time.Time, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", err.Error())
		return 0, time.Time{}, time.Time{}, false
	}
	now := time.Now()
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "from must be YYYY-MM-DD")
			return 0, time.Time{}, time.Time{}, false
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "to must be YYYY-MM-DD")
			return 0, time.Time{}, time.Time{}, false
		}
	}
	if to.Before(from) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid range", "to precedes from")
		return 0, time.Time{}, time.Time{}, false
	}
	return id, from, to, true
}
