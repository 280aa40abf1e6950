package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service builds balance projections from posted journal data.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// TrialBalance sums all posted lines up to asOf and nets each account.
// Concurrent identical requests collapse onto one build; results are
// cached until the next posting invalidates them.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	if tb, ok := s.cache.GetTrialBalance(ctx, asOf); ok {
		return tb, nil
	}
	key := "tb:" + asOf.Format("2006-01-02")
	result, err, _ := s.group.Do(key, func() (any, error) {
		balances, err := s.repo.SumPostedByAccount(ctx, asOf)
		if err != nil {
			return nil, err
		}
		tb := BuildTrialBalance(balances)
		s.cache.SetTrialBalance(ctx, asOf, tb)
		return tb, nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return result.(TrialBalance), nil
}

// AccountLedger produces the ordered movements for one account with a
// running balance carried from the opening balance before the range.
func (s *Service) AccountLedger(ctx context.Context, accountID int64, from, to time.Time) (AccountLedger, error) {
	if to.Before(from) {
		return AccountLedger{}, fmt.Errorf("reports: date range end precedes start")
	}
	opening, err := s.repo.AccountOpening(ctx, accountID, from)
	if err != nil {
		return AccountLedger{}, err
	}
	movements, err := s.repo.AccountMovements(ctx, accountID, from, to)
	if err != nil {
		return AccountLedger{}, err
	}
	rows := CollectLedger(opening, movements)
	closing := opening
	if len(rows) > 0 {
		closing = rows[len(rows)-1].Balance
	}
	return AccountLedger{
		AccountID: accountID,
		From:      from,
		To:        to,
		Opening:   opening,
		Rows:      rows,
		Closing:   closing,
	}, nil
}

// ContactStatement is the running-balance projection over lines tagged
// with the contact, for customer/supplier statements.
func (s *Service) ContactStatement(ctx context.Context, contactID int64, from, to time.Time) (ContactStatement, error) {
	if to.Before(from) {
		return ContactStatement{}, fmt.Errorf("reports: date range end precedes start")
	}
	opening, err := s.repo.ContactOpening(ctx, contactID, from)
	if err != nil {
		return ContactStatement{}, err
	}
	movements, err := s.repo.ContactMovements(ctx, contactID, from, to)
	if err != nil {
		return ContactStatement{}, err
	}
	rows := CollectLedger(opening, movements)
	closing := opening
	if len(rows) > 0 {
		closing = rows[len(rows)-1].Balance
	}
	return ContactStatement{
		ContactID: contactID,
		From:      from,
		To:        to,
		Opening:   opening,
		Rows:      rows,
		Closing:   closing,
	}, nil
}
