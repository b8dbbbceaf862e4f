package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by MarkSent for an id that was never created.
	ErrNotFound = errors.New("reminder not found")

	// ErrUnavailable wraps persistence-layer failures so callers can treat
	// "store down" uniformly regardless of the underlying driver error.
	ErrUnavailable = errors.New("store unavailable")
)

// Status of a reminder. The transition is one-directional: once Sent, a
// reminder never goes back to Pending.
type Status int

const (
	StatusPending Status = 0
	StatusSent    Status = 1
)

// Reminder is the sole persisted entity.
//
// DueAt is decoded from the stored text at fetch time via the fallback
// ladder; when no encoding matches, Corrupt is set, DueAt is zero and DueRaw
// carries the offending text for logging. EventAt stays raw because it is
// display-only and may hold any historical encoding; the dispatcher degrades
// gracefully when it cannot be parsed.
type Reminder struct {
	ID      int64
	Message string
	DueAt   time.Time
	DueRaw  string
	EventAt string
	Target  string
	Status  Status
	Corrupt bool
}
