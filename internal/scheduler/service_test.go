package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"zuppa/internal/store"
	"zuppa/pkg/logx"
)

// memStore is an in-memory store.Store good enough for loop testing.
type memStore struct {
	mu        sync.Mutex
	reminders []store.Reminder
	fetchErr  error
}

func (m *memStore) Create(ctx context.Context, message string, dueAt, eventAt time.Time, target string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.reminders) + 1)
	m.reminders = append(m.reminders, store.Reminder{ID: id, Message: message, DueAt: dueAt, Target: target})
	return id, nil
}

func (m *memStore) FetchPending(ctx context.Context) ([]store.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []store.Reminder
	for _, r := range m.reminders {
		if r.Status == store.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) MarkSent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.reminders {
		if m.reminders[i].ID == id {
			m.reminders[i].Status = store.StatusSent
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) Close() error { return nil }

func (m *memStore) add(r store.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, r)
}

// recordingDeliverer marks sent on success like the real dispatcher does.
type recordingDeliverer struct {
	mu        sync.Mutex
	st        *memStore
	delivered []int64
	failIDs   map[int64]error
	block     chan struct{} // when non-nil, Deliver waits until closed
	started   chan struct{} // closed when the first Deliver begins
	once      sync.Once
}

func (d *recordingDeliverer) Deliver(ctx context.Context, r store.Reminder) error {
	if d.started != nil {
		d.once.Do(func() { close(d.started) })
	}
	if d.block != nil {
		<-d.block
	}
	if err, ok := d.failIDs[r.ID]; ok {
		return err
	}
	d.mu.Lock()
	d.delivered = append(d.delivered, r.ID)
	d.mu.Unlock()
	return d.st.MarkSent(ctx, r.ID)
}

func (d *recordingDeliverer) deliveredIDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.delivered...)
}

func newTestService(st *memStore, d Deliverer, clk clock.Clock) *Service {
	return New(Config{Scan: "30s"}, NewScanner(st), d, clk, logx.Nop(), nil)
}

func TestScanExcludesNotYetDue(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := &memStore{}
	st.add(store.Reminder{ID: 1, DueAt: now.Add(-time.Minute)})
	st.add(store.Reminder{ID: 2, DueAt: now})
	st.add(store.Reminder{ID: 3, DueAt: now.Add(time.Second)})

	res, err := NewScanner(st).Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(res.Due) != 2 || res.Due[0].ID != 1 || res.Due[1].ID != 2 {
		t.Fatalf("Due = %+v, want ids [1 2]", res.Due)
	}
	if res.Pending != 3 {
		t.Fatalf("Pending = %d, want 3", res.Pending)
	}
}

func TestTickDeliversDueAndRetriesUntilSent(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	st := &memStore{}
	st.add(store.Reminder{ID: 1, DueAt: clk.Now().Add(-time.Minute)})

	d := &recordingDeliverer{st: st, failIDs: map[int64]error{1: errors.New("transport down")}}
	s := newTestService(st, d, clk)

	// Failing delivery: reminder keeps coming back every tick.
	s.Tick(context.Background())
	s.Tick(context.Background())
	if got := d.deliveredIDs(); len(got) != 0 {
		t.Fatalf("delivered = %v, want none while failing", got)
	}

	// Transport recovers: exactly one delivery, then no redelivery.
	delete(d.failIDs, 1)
	s.Tick(context.Background())
	s.Tick(context.Background())
	if got := d.deliveredIDs(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("delivered = %v, want exactly [1]", got)
	}
}

func TestTickIsolatesPerItemFailures(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	st := &memStore{}
	st.add(store.Reminder{ID: 1, DueAt: clk.Now().Add(-time.Minute)})
	st.add(store.Reminder{ID: 2, DueAt: clk.Now().Add(-time.Minute)})

	d := &recordingDeliverer{st: st, failIDs: map[int64]error{1: errors.New("boom")}}
	s := newTestService(st, d, clk)

	s.Tick(context.Background())
	if got := d.deliveredIDs(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("delivered = %v, want [2] despite id 1 failing", got)
	}
}

func TestTickIsolatesCorruptRows(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	st := &memStore{}
	st.add(store.Reminder{ID: 1, Corrupt: true, DueRaw: "not-a-time"})
	st.add(store.Reminder{ID: 2, DueAt: clk.Now().Add(-time.Minute)})

	d := &recordingDeliverer{st: st}
	s := newTestService(st, d, clk)

	s.Tick(context.Background())
	if got := d.deliveredIDs(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("delivered = %v, want [2] with corrupt row skipped", got)
	}
}

func TestTickSurvivesScanFailure(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake()
	st := &memStore{fetchErr: errors.New("db locked")}
	s := newTestService(st, &recordingDeliverer{st: st}, clk)

	// Must not panic and must leave the service usable.
	s.Tick(context.Background())

	st.mu.Lock()
	st.fetchErr = nil
	st.mu.Unlock()
	st.add(store.Reminder{ID: 1, DueAt: clk.Now().Add(-time.Minute)})
	d := &recordingDeliverer{st: st}
	s2 := newTestService(st, d, clk)
	s2.Tick(context.Background())
	if got := d.deliveredIDs(); len(got) != 1 {
		t.Fatalf("delivered = %v after store recovery, want one", got)
	}
}

func TestOverlappingTickSkips(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	st := &memStore{}
	st.add(store.Reminder{ID: 1, DueAt: clk.Now().Add(-time.Minute)})

	block := make(chan struct{})
	started := make(chan struct{})
	d := &recordingDeliverer{st: st, block: block, started: started}
	s := newTestService(st, d, clk)

	go s.Tick(context.Background())
	<-started

	// Second tick must return immediately instead of queueing behind the
	// blocked one.
	returned := make(chan struct{})
	go func() {
		s.Tick(context.Background())
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("overlapping tick did not skip")
	}

	close(block)
}

func TestStopDrainsInFlightTick(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	st := &memStore{}
	st.add(store.Reminder{ID: 1, DueAt: clk.Now().Add(-time.Minute)})

	block := make(chan struct{})
	started := make(chan struct{})
	d := &recordingDeliverer{st: st, block: block, started: started}

	s := New(Config{Scan: "10ms"}, NewScanner(st), d, clk, logx.Nop(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	<-started // a tick is now in flight

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped <- s.Stop(ctx)
	}()

	// Stop must not report stopped while the tick is still blocked.
	select {
	case err := <-stopped:
		t.Fatalf("Stop returned %v before the in-flight tick finished", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(block)
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the tick drained")
	}

	// The drained tick's commit survived.
	if got := d.deliveredIDs(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("delivered = %v, want [1] committed during drain", got)
	}
}

func TestNextFuncVariants(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC)

	next, err := nextFunc("30s")
	if err != nil {
		t.Fatalf("duration spec error: %v", err)
	}
	if got := next(now); !got.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("next = %v, want now+30s", got)
	}

	next, err = nextFunc("@every 30s")
	if err != nil {
		t.Fatalf("cron descriptor error: %v", err)
	}
	if got := next(now); got.Sub(now) != 30*time.Second {
		t.Fatalf("cron next = %v, want 30s after now", got)
	}

	if _, err := nextFunc("*/1 * * * *"); err != nil {
		t.Fatalf("cron expression error: %v", err)
	}
	if _, err := nextFunc("often"); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if _, err := nextFunc("-5s"); err == nil {
		t.Fatal("expected error for negative interval")
	}
}
