package scheduler

import (
	"context"
	"time"

	"zuppa/internal/store"
)

// Scanner selects the reminders eligible for delivery at a given instant.
type Scanner struct {
	store store.Store
}

func NewScanner(st store.Store) *Scanner {
	return &Scanner{store: st}
}

// ScanResult is one tick's view of the pending set.
type ScanResult struct {
	Due     []store.Reminder // DueAt <= now, ready for delivery
	Pending int              // total pending rows, including not-yet-due
	Corrupt []store.Reminder // rows skipped because their due time is unreadable
}

// Scan fetches the pending set and splits out the due reminders. Corrupt rows
// are reported, never delivered; they stay Pending so a parser fix on a later
// deploy can still rescue them.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (ScanResult, error) {
	pending, err := s.store.FetchPending(ctx)
	if err != nil {
		return ScanResult{}, err
	}

	res := ScanResult{Pending: len(pending)}
	for _, r := range pending {
		switch {
		case r.Corrupt:
			res.Corrupt = append(res.Corrupt, r)
		case !r.DueAt.After(now):
			res.Due = append(res.Due, r)
		}
	}
	return res, nil
}
