package timeform

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned for submissions that must be rejected before
// anything is persisted.
var ErrInvalidInput = errors.New("invalid input")

// wallClockLayout is the submission format: the datetime-local value as typed
// by a human, no zone information attached.
const wallClockLayout = "2006-01-02T15:04"

const (
	// maxOffsetMinutes bounds the client UTC offset. Real zones fit in
	// UTC-12..UTC+14; anything beyond a day is a broken client.
	maxOffsetMinutes = 24 * 60

	// maxLeadMinutes bounds the lead offset to one year.
	maxLeadMinutes = 366 * 24 * 60
)

// Normalize converts a user-typed wall-clock value plus the client's UTC
// offset into absolute UTC instants.
//
// Sign convention for utcOffsetMinutes: it is the number of minutes that must
// be ADDED to the local wall-clock value to obtain UTC. This matches
// JavaScript's Date.prototype.getTimezoneOffset(), which is positive west of
// UTC (New York in winter reports +300) and negative east of it (Berlin in
// winter reports -60). Getting this wrong shifts every reminder by up to a
// day, so both signs are pinned by tests.
//
// eventAt is the wall clock reinterpreted on the UTC timeline; dueAt is
// eventAt minus the lead offset.
func Normalize(wallClock string, utcOffsetMinutes, leadMinutes int) (dueAt, eventAt time.Time, err error) {
	naive, perr := time.Parse(wallClockLayout, wallClock)
	if perr != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: event time %q does not match YYYY-MM-DDTHH:MM", ErrInvalidInput, wallClock)
	}
	if utcOffsetMinutes < -maxOffsetMinutes || utcOffsetMinutes > maxOffsetMinutes {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: utc offset %d minutes out of range", ErrInvalidInput, utcOffsetMinutes)
	}
	if leadMinutes < 0 || leadMinutes > maxLeadMinutes {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: lead offset %d minutes out of range", ErrInvalidInput, leadMinutes)
	}

	// time.Parse without a zone yields UTC, so the naive value is already
	// "wall clock tagged UTC"; adding the offset lands on the real instant.
	eventAt = naive.Add(time.Duration(utcOffsetMinutes) * time.Minute)
	dueAt = eventAt.Add(-time.Duration(leadMinutes) * time.Minute)
	return dueAt, eventAt, nil
}
