package store

import (
	"context"
	"time"

	"zuppa/pkg/logx"
)

// Store is the persistence API used by the web surface, the scanner and the
// dispatcher. Implementations must tolerate concurrent FetchPending and
// MarkSent calls; no cross-row transactions are required.
type Store interface {
	// Create atomically inserts a Pending reminder and returns its id.
	Create(ctx context.Context, message string, dueAt, eventAt time.Time, target string) (int64, error)

	// FetchPending returns every Pending reminder ordered by ascending due
	// time. Rows whose stored due time matches no known encoding are
	// returned with Corrupt set rather than silently omitted.
	FetchPending(ctx context.Context) ([]Reminder, error)

	// MarkSent transitions a reminder to Sent. Marking an already-Sent
	// reminder is a no-op success; only a never-created id is ErrNotFound.
	MarkSent(ctx context.Context, id int64) error

	Close() error
}

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Open initializes the reminder store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
