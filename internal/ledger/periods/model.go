// Package periods tracks which (year, month) accounting periods are
// locked. A locked period rejects every journal mutation dated inside it
// until an administrator explicitly unlocks it.
package periods

import (
	"errors"
	"time"
)

// PeriodLock is the lock record for one (year, month) period.
type PeriodLock struct {
	ID         int64
	Year       int
	Month      int
	IsLocked   bool
	LockedAt   *time.Time
	LockedBy   *int64
	UnlockedAt *time.Time
	UnlockedBy *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrAlreadyLocked indicates the period is already locked.
	ErrAlreadyLocked = errors.New("periods: period already locked")
	// ErrUnpostedEntries indicates draft entries remain dated in the
	// period; locking would orphan them.
	ErrUnpostedEntries = errors.New("periods: unposted draft entries exist in period")
	// ErrInvalidPeriod indicates a month outside 1..12 or a zero year.
	ErrInvalidPeriod = errors.New("periods: invalid year/month")
)

// ValidatePeriod rejects out-of-range period coordinates.
func ValidatePeriod(year, month int) error {
	if year < 1900 || year > 9999 || month < 1 || month > 12 {
		return ErrInvalidPeriod
	}
	return nil
}
