package ledger

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

const dateLayout = "2006-01-02"

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required"`
	ContactID   *int64          `json:"contact_id,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type draftRequest struct {
	Number       string        `json:"number" validate:"required"`
	Description  string        `json:"description"`
	Date         string        `json:"date" validate:"required"`
	SourceModule string        `json:"source_module"`
	SourceID     string        `json:"source_id"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (req draftRequest) toInput(actorID int64) (DraftInput, error) {
	if err := validate.Struct(req); err != nil {
		return DraftInput{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return DraftInput{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	input := DraftInput{
		Number:       req.Number,
		Description:  req.Description,
		Date:         date,
		CreatedBy:    actorID,
		SourceModule: req.SourceModule,
	}
	if req.SourceID != "" {
		input.SourceID, err = uuid.Parse(req.SourceID)
		if err != nil {
			return DraftInput{}, fmt.Errorf("%w: source_id must be a UUID", ErrValidation)
		}
	}
	input.Lines = make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountID:   line.AccountID,
			ContactID:   line.ContactID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return input, nil
}

type reverseRequest struct {
	Description string `json:"description"`
	Date        string `json:"date"`
}

type lineResponse struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	ContactID   *int64          `json:"contact_id,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type entryResponse struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
	Status       EntryStatus     `json:"status"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	ReversalOfID *int64          `json:"reversal_of_id,omitempty"`
	SourceModule string          `json:"source_module,omitempty"`
	SourceID     string          `json:"source_id,omitempty"`
	PostedAt     *time.Time      `json:"posted_at,omitempty"`
	Lines        []lineResponse  `json:"lines,omitempty"`
}

func toEntryResponse(entry JournalEntry) entryResponse {
	resp := entryResponse{
		ID:           entry.ID,
		Number:       entry.Number,
		Description:  entry.Description,
		Date:         entry.Date.Format(dateLayout),
		Status:       entry.Status,
		TotalDebit:   entry.TotalDebit,
		TotalCredit:  entry.TotalCredit,
		ReversalOfID: entry.ReversalOfID,
		SourceModule: entry.SourceModule,
		PostedAt:     entry.PostedAt,
	}
	if entry.SourceID != uuid.Nil {
		resp.SourceID = entry.SourceID.String()
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:          line.ID,
			AccountID:   line.AccountID,
			ContactID:   line.ContactID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return resp
}
