package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"zuppa/internal/timeform"
	"zuppa/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, message string, dueAt, eventAt time.Time, target string) (int64, error) {
	if strings.TrimSpace(message) == "" {
		return 0, errors.New("message is required")
	}
	if strings.TrimSpace(target) == "" {
		return 0, errors.New("target is required")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(message, remind_time, event_time, target_user, sent_status)
		 VALUES(?,?,?,?,?)`,
		message, timeform.FormatStored(dueAt), timeform.FormatStored(eventAt), target, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert reminder: %v", ErrUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %v", ErrUnavailable, err)
	}
	return id, nil
}

func (s *sqliteStore) FetchPending(ctx context.Context) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, remind_time, COALESCE(event_time, ''), target_user, sent_status
		 FROM reminders WHERE sent_status = ? ORDER BY remind_time ASC`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query pending: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.Message, &r.DueRaw, &r.EventAt, &r.Target, &r.Status); err != nil {
			return nil, fmt.Errorf("%w: scan reminder: %v", ErrUnavailable, err)
		}
		due, perr := timeform.ParseStored(r.DueRaw)
		if perr != nil {
			// Keep the row visible so the scanner can count and skip it.
			r.Corrupt = true
			s.log.Warn("reminder has unparsable due time",
				logx.Int64("id", r.ID), logx.String("remind_time", r.DueRaw), logx.Err(perr))
		} else {
			r.DueAt = due
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pending: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *sqliteStore) MarkSent(ctx context.Context, id int64) error {
	// The UPDATE is idempotent: re-marking an already-Sent row matches and
	// "changes" it under SQLite semantics, so a retried commit is a no-op
	// success rather than an error.
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET sent_status = ? WHERE id = ?`, StatusSent, id)
	if err != nil {
		return fmt.Errorf("%w: mark sent: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
