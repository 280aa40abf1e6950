package close

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/accounts"
	"github.com/defterdar/defterdar/internal/ledger/mappings"
	"github.com/defterdar/defterdar/internal/ledger/reports"
	"github.com/defterdar/defterdar/internal/shared"
)

// AuditPort records close events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ProjectionCache invalidates balance projections after the close
// writes its entries.
type ProjectionCache interface {
	Invalidate(ctx context.Context) error
}

// Service runs the fiscal year close.
type Service struct {
	repo     RepositoryPort
	resolver mappings.Resolver
	audit    AuditPort
	cache    ProjectionCache
	now      func() time.Time
}

func NewService(repo RepositoryPort, resolver mappings.Resolver, audit AuditPort, cache ProjectionCache) *Service {
	return &Service{repo: repo, resolver: resolver, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CloseYear posts the closing entry, posts the opening entry for the
// next year, and locks all twelve months. Everything runs in a single
// transaction; if any month still holds drafts the whole operation
// aborts before any lock is taken.
func (s *Service) CloseYear(ctx context.Context, year int, actorID int64) (Result, error) {
	if year < 1900 || year > 9999 {
		return Result{}, ErrInvalidYear
	}
	retained, err := s.resolver.Resolve(ctx, mappings.ModuleClose, mappings.KeyRetainedEarnings)
	if err != nil {
		return Result{}, err
	}

	result := Result{Year: year}
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	nextStart := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		drafts, err := tx.CountDraftsInYear(ctx, year)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return fmt.Errorf("%w: %d drafts", ErrDraftsInYear, drafts)
		}

		balances, err := tx.AccountBalances(ctx, yearEnd)
		if err != nil {
			return err
		}
		closingLines, err := BuildClosingLines(balances)
		if err != nil {
			return err
		}
		result.ClosingEntry, err = ledger.CreatePostedTx(ctx, tx, ledger.DraftInput{
			Number:       fmt.Sprintf("CLS-%d", year),
			Description:  fmt.Sprintf("Year-end closing %d", year),
			Date:         yearEnd,
			CreatedBy:    actorID,
			SourceModule: "close",
			SourceID:     uuid.New(),
			Lines:        closingLines,
		}, s.now())
		if err != nil {
			return err
		}

		openingLines, err := BuildOpeningLines(balances, retained.AccountID)
		if err != nil {
			return err
		}
		result.OpeningEntry, err = ledger.CreatePostedTx(ctx, tx, ledger.DraftInput{
			Number:       fmt.Sprintf("OPN-%d", year+1),
			Description:  fmt.Sprintf("Opening balances %d", year+1),
			Date:         nextStart,
			CreatedBy:    actorID,
			SourceModule: "close",
			SourceID:     uuid.New(),
			Lines:        openingLines,
		}, s.now())
		if err != nil {
			return err
		}

		for month := 1; month <= 12; month++ {
			if err := tx.LockPeriod(ctx, year, month, actorID, s.now()); err != nil {
				return err
			}
			result.LockedPeriods = append(result.LockedPeriods, ledger.Period{Year: year, Month: time.Month(month)})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
	s.record(ctx, actorID, year, result)
	return result, nil
}

// BuildClosingLines nets every posted account balance to zero at year
// end, the kapanış fişi of Turkish bookkeeping. Revenue and expense
// vanish for good; balance-sheet balances re-enter solely through the
// opening entry, so nothing is counted twice in the new year. The
// global trial balance must itself balance; anything else indicates
// corrupted posted data and aborts with ErrUnbalancedClosing rather
// than force-balancing.
func BuildClosingLines(balances []reports.AccountBalance) ([]ledger.LineInput, error) {
	var totalDebit, totalCredit decimal.Decimal
	for _, b := range balances {
		totalDebit = totalDebit.Add(b.Debit)
		totalCredit = totalCredit.Add(b.Credit)
	}
	if !totalDebit.Equal(totalCredit) {
		return nil, fmt.Errorf("%w: posted debits %s != credits %s", ErrUnbalancedClosing, totalDebit, totalCredit)
	}

	var lines []ledger.LineInput
	for _, b := range balances {
		net := b.Debit.Sub(b.Credit)
		if net.IsZero() {
			continue
		}
		line := ledger.LineInput{AccountID: b.AccountID, Description: "Year-end closing"}
		if net.Sign() > 0 {
			line.Credit = net
		} else {
			line.Debit = net.Neg()
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no posted movement to close", ledger.ErrEmptyEntry)
	}
	return lines, nil
}

// BuildOpeningLines carries balance-sheet account balances into the new
// year from the same pre-closing snapshot the closing entry consumed.
// The year's net result folds into the retained earnings account, so
// revenue and expense start at zero and never appear.
func BuildOpeningLines(balances []reports.AccountBalance, retainedAccountID int64) ([]ledger.LineInput, error) {
	var result decimal.Decimal
	nets := make([]accountNet, 0, len(balances))
	haveRetained := false
	for _, b := range balances {
		net := b.Debit.Sub(b.Credit)
		if isResultAccount(b.Type) {
			result = result.Add(net)
			continue
		}
		if b.AccountID == retainedAccountID {
			haveRetained = true
		}
		nets = append(nets, accountNet{accountID: b.AccountID, net: net})
	}
	if haveRetained {
		for i := range nets {
			if nets[i].accountID == retainedAccountID {
				nets[i].net = nets[i].net.Add(result)
			}
		}
	} else if !result.IsZero() {
		nets = append(nets, accountNet{accountID: retainedAccountID, net: result})
	}

	var lines []ledger.LineInput
	var check decimal.Decimal
	for _, n := range nets {
		if n.net.IsZero() {
			continue
		}
		line := ledger.LineInput{AccountID: n.accountID, Description: "Opening balance"}
		if n.net.Sign() > 0 {
			line.Debit = n.net
		} else {
			line.Credit = n.net.Neg()
		}
		lines = append(lines, line)
		check = check.Add(n.net)
	}
	if !check.IsZero() {
		return nil, fmt.Errorf("%w: opening balances net to %s", ErrUnbalancedClosing, check)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no balances to carry forward", ledger.ErrEmptyEntry)
	}
	return lines, nil
}

type accountNet struct {
	accountID int64
	net       decimal.Decimal
}

func isResultAccount(typ string) bool {
	t := accounts.AccountType(typ)
	return t == accounts.AccountTypeRevenue || t == accounts.AccountTypeExpense
}

func (s *Service) record(ctx context.Context, actorID int64, year int, result Result) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "year.close",
		Entity:   "fiscal_year",
		EntityID: fmt.Sprintf("%d", year),
		Meta: map[string]any{
			"closing_entry_id": result.ClosingEntry.ID,
			"opening_entry_id": result.OpeningEntry.ID,
		},
		At: s.now(),
	})
}
