// Package scheduler drives the periodic scan-and-deliver pass.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/robfig/cron/v3"

	"zuppa/internal/metrics"
	"zuppa/internal/store"
	"zuppa/pkg/logx"
)

// Deliverer sends one due reminder. Implemented by dispatcher.Dispatcher.
type Deliverer interface {
	Deliver(ctx context.Context, r store.Reminder) error
}

type Config struct {
	// Scan is the cadence of the scan-and-deliver pass: a Go duration
	// ("30s") or a cron expression ("*/1 * * * *", "@every 30s").
	// Empty means 30s.
	Scan string
}

// Service owns the tick lifecycle: Stopped -> Running -> Stopped.
//
// Overlap policy: a tick that is still running when the next one is due makes
// the next one a no-op (skip, not queue). With a 30s cadence and per-send
// timeouts well under that, skips only happen when the store or the platform
// is already in trouble, and the following tick retries everything anyway.
type Service struct {
	cfg     Config
	scanner *Scanner
	disp    Deliverer
	clk     clock.Clock
	log     logx.Logger
	met     *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	tickMu sync.Mutex // held for the duration of one tick
}

func New(cfg Config, scanner *Scanner, disp Deliverer, clk clock.Clock, log logx.Logger, met *metrics.Metrics) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		scanner: scanner,
		disp:    disp,
		clk:     clk,
		log:     log,
		met:     met,
	}
}

// Start launches the tick loop. It is idempotent.
func (s *Service) Start(ctx context.Context) error {
	next, err := nextFunc(s.cfg.Scan)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done

	go func() {
		defer close(done)
		s.loop(loopCtx, next)
	}()

	s.log.Info("scheduler started", logx.String("scan", scanOrDefault(s.cfg.Scan)))
	_ = ctx
	return nil
}

// Stop cancels future ticks and waits, bounded by ctx, for an in-flight tick
// to drain. MarkSent calls that already succeeded are never rolled back.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with a tick in flight")
		return ctx.Err()
	}
}

func (s *Service) loop(ctx context.Context, next func(time.Time) time.Time) {
	for {
		now := time.Now()
		fireAt := next(now)
		t := time.NewTimer(fireAt.Sub(now))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
			// The tick runs on its own context: cancelling the loop stops
			// scheduling but must not abort commits of a pass already in
			// flight. Each send inside the tick is individually bounded.
			s.Tick(context.Background())
		}
	}
}

// Tick runs one scan-and-deliver pass. A tick firing while a previous one is
// still in flight returns immediately (see overlap policy above).
func (s *Service) Tick(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.log.Warn("tick skipped, previous tick still running")
		return
	}
	defer s.tickMu.Unlock()

	started := time.Now()
	now := s.clk.Now().UTC()

	res, err := s.scanner.Scan(ctx, now)
	if err != nil {
		s.log.Error("scan failed, will retry next tick", logx.Err(err))
		return
	}

	for _, r := range res.Corrupt {
		// Stays pending forever until fixed; the counter is the operator's
		// signal that a row needs manual attention.
		s.met.CorruptTimestamp()
		s.log.Error("skipping reminder with unreadable due time",
			logx.Int64("id", r.ID), logx.String("remind_time", r.DueRaw))
	}

	delivered := 0
	for _, r := range res.Due {
		if ctx.Err() != nil {
			break
		}
		// One reminder's failure never aborts the rest of the tick.
		if err := s.disp.Deliver(ctx, r); err != nil {
			s.log.Warn("delivery failed, reminder stays pending",
				logx.Int64("id", r.ID), logx.Err(err))
			continue
		}
		delivered++
	}

	s.met.TickCompleted(time.Since(started), res.Pending)
	if len(res.Due) > 0 || len(res.Corrupt) > 0 {
		s.log.Info("tick finished",
			logx.Int("due", len(res.Due)),
			logx.Int("delivered", delivered),
			logx.Int("corrupt", len(res.Corrupt)),
			logx.Int("pending", res.Pending))
	}
}

const defaultScan = "30s"

func scanOrDefault(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return defaultScan
	}
	return strings.TrimSpace(raw)
}

// nextFunc turns the cadence config into a "next fire instant" function.
// Durations tick on a fixed interval; anything with whitespace or a leading
// '@' goes through the cron parser (5-field, descriptors allowed).
func nextFunc(raw string) (func(time.Time) time.Time, error) {
	spec := scanOrDefault(raw)

	if strings.ContainsAny(spec, " \t") || strings.HasPrefix(spec, "@") {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		sched, err := parser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid scan schedule %q: %w", spec, err)
		}
		return sched.Next, nil
	}

	every, err := time.ParseDuration(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid scan interval %q (use a duration like '30s' or a cron expression): %w", spec, err)
	}
	if every <= 0 {
		return nil, fmt.Errorf("scan interval must be > 0")
	}
	return func(now time.Time) time.Time { return now.Add(every) }, nil
}
