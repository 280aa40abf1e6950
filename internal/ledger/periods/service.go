package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/defterdar/defterdar/internal/shared"
)

// AuditPort records lock events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context) ([]PeriodLock, error) {
	return s.repo.List(ctx)
}

// IsLocked reports whether the period containing date is locked.
func (s *Service) IsLocked(ctx context.Context, date time.Time) (bool, error) {
	return s.repo.IsLocked(ctx, date)
}

// Lock closes the (year, month) period to all journal mutations. It
// fails when the period is already locked or still holds draft entries.
func (s *Service) Lock(ctx context.Context, year, month int, actorID int64) (PeriodLock, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return PeriodLock{}, err
	}
	lock, err := s.repo.Lock(ctx, year, month, actorID, s.now())
	if err != nil {
		return PeriodLock{}, err
	}
	s.record(ctx, actorID, "period.lock", year, month)
	return lock, nil
}

// Unlock reopens the period. Always permitted; the override is audited.
func (s *Service) Unlock(ctx context.Context, year, month int, actorID int64) (PeriodLock, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return PeriodLock{}, err
	}
	lock, err := s.repo.Unlock(ctx, year, month, actorID, s.now())
	if err != nil {
		return PeriodLock{}, err
	}
	s.record(ctx, actorID, "period.unlock", year, month)
	return lock, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, year, month int) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "period_lock",
		EntityID: fmt.Sprintf("%04d-%02d", year, month),
		At:       s.now(),
	})
}
