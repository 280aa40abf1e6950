package invoicing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/mappings"
	"github.com/defterdar/defterdar/internal/platform/httpx"
)

var validate = validator.New()

// Handler exposes invoice and contact endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/cancel", h.cancel)
}

// MountContactRoutes registers contact routes.
func (h *Handler) MountContactRoutes(r chi.Router) {
	r.Get("/", h.listContacts)
	r.Post("/", h.createContact)
}

type lineRequest struct {
	Description  string           `json:"description" validate:"required"`
	Quantity     decimal.Decimal  `json:"quantity"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	TaxRate      int              `json:"tax_rate"`
	WithholdRate *decimal.Decimal `json:"withhold_rate,omitempty"`
}

type createRequest struct {
	Number    string        `json:"number" validate:"required"`
	ContactID int64         `json:"contact_id" validate:"required"`
	Date      string        `json:"date" validate:"required"`
	Type      string        `json:"type" validate:"required"`
	Lines     []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type contactRequest struct {
	Name      string `json:"name" validate:"required"`
	Kind      string `json:"kind" validate:"required"`
	TaxNumber string `json:"tax_number"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD")
		return
	}
	input := CreateInput{
		Number:    req.Number,
		ContactID: req.ContactID,
		Date:      date,
		Type:      InvoiceType(req.Type),
		CreatedBy: actorID(r),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			Description:  line.Description,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			TaxRate:      line.TaxRate,
			WithholdRate: line.WithholdRate,
		})
	}
	invoice, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid invoice id", err.Error())
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 100}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = InvoiceStatus(status)
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		filter.Type = InvoiceType(typ)
	}
	if contact := r.URL.Query().Get("contact_id"); contact != "" {
		filter.ContactID, _ = strconv.ParseInt(contact, 10, 64)
	}
	invoices, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid invoice id", err.Error())
		return
	}
	invoice, err := h.service.Post(r.Context(), id, actorID(r))
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid invoice id", err.Error())
		return
	}
	invoice, err := h.service.Cancel(r.Context(), id, actorID(r))
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) listContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.service.ListContacts(r.Context())
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (h *Handler) createContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	contact, err := h.service.CreateContact(r.Context(), req.Name, ContactKind(req.Kind), req.TaxNumber)
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, contact)
}

func (h *Handler) problem(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTaxRate):
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrContactNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ledger.ErrPeriodLocked):
		httpx.Problem(w, http.StatusConflict, "Period locked", err.Error())
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrUnbalanced):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Journal translation failed", err.Error())
	case errors.Is(err, ledger.ErrUnknownAccount), errors.Is(err, ledger.ErrAccountInactive), errors.Is(err, mappings.ErrMappingNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Posting accounts not configured", err.Error())
	case errors.Is(err, ledger.ErrDuplicateNumber), errors.Is(err, ledger.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Journal conflict", err.Error())
	default:
		h.logger.Error("invoice request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
	}
}

func invoiceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invoicing: invalid id")
	}
	return id, nil
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
