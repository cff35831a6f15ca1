package lockable

import (
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/db/engines/maple"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/lib/store/lstore"
)

// t0 is the reference instant of all scenarios, offsets are given in seconds relative to it
var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink collects events
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventKind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

func (s *recordingSink) count(kind EventKind) int {
	n := 0
	for _, k := range s.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	store store.IStore
	clock *fakeClock
	sink  *recordingSink
	mgr   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) }),
		clock: newFakeClock(t0),
		sink:  &recordingSink{},
	}
	f.mgr = NewLockManager(f.store,
		WithClock(f.clock),
		WithConfig(StaticConfig{Expiration: 600 * time.Second, Warning: 540 * time.Second}),
		WithAuditSink(f.sink),
	)
	return f
}

// create stores a new unlocked record and returns a handle to it
func (f *fixture) create(t *testing.T, id string) *record.Record {
	t.Helper()
	rec := record.New(id, map[string]string{"title": "draft"}, f.clock.Now())
	if err := f.store.Create(rec); err != nil {
		t.Fatalf("Create(%s) failed: %v", id, err)
	}
	return &rec
}

// load returns a fresh handle
func (f *fixture) load(t *testing.T, id string) *record.Record {
	t.Helper()
	rec, ok, err := f.store.Get(id)
	if err != nil || !ok {
		t.Fatalf("Get(%s) = ok %v, err %v", id, ok, err)
	}
	return &rec
}

func lockAt(seconds int, by record.Principal, hard bool) record.LockState {
	return record.NewLock(at(seconds), by, hard)
}
