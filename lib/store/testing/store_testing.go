package testing

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
)

// StoreFactory creates a fresh, empty store for one test
type StoreFactory func(t *testing.T) store.IStore

// RunStoreTests runs the conformance suite every store.IStore implementation must pass.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Create&Get", func(t *testing.T) {
			testCreateGet(t, factory(t))
		})

		t.Run("CreateInvalid", func(t *testing.T) {
			testCreateInvalid(t, factory(t))
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory(t))
		})

		t.Run("ConditionFailed", func(t *testing.T) {
			testConditionFailed(t, factory(t))
		})

		t.Run("NotFound", func(t *testing.T) {
			testNotFound(t, factory(t))
		})

		t.Run("ConcurrentAcquire", func(t *testing.T) {
			testConcurrentAcquire(t, factory(t))
		})

		t.Run("RacingLockManagers", func(t *testing.T) {
			testRacingLockManagers(t, factory(t))
		})

		t.Run("List&Delete", func(t *testing.T) {
			testListDelete(t, factory(t))
		})

		t.Run("DBInfo", func(t *testing.T) {
			testDBInfo(t, factory(t))
		})
	})
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func lockOf(by record.Principal, hard bool) *record.LockState {
	l := record.NewLock(baseTime, by, hard)
	return &l
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateGet(t *testing.T, s store.IStore) {
	rec := record.New("story-1", map[string]string{"title": "hello", "body": "world"}, baseTime)

	if err := s.Create(rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, loaded, err := s.Get(rec.ID)
	if err != nil || !loaded {
		t.Fatalf("Get failed: loaded=%v err=%v", loaded, err)
	}
	if got.ID != rec.ID || got.Fields["title"] != "hello" || got.Fields["body"] != "world" {
		t.Errorf("Unexpected record: %v", got)
	}
	if !got.ModifiedAt.Equal(baseTime) || got.Lock.IsSet() {
		t.Errorf("Unexpected metadata: modified_at=%v lock=%v", got.ModifiedAt, got.Lock)
	}

	err = s.Create(record.New(rec.ID, nil, baseTime))
	if store.Code(err) != store.RetCAlreadyExists {
		t.Errorf("Expected RetCAlreadyExists on duplicate create, got %v", err)
	}

	_, loaded, err = s.Get("missing")
	if err != nil || loaded {
		t.Errorf("Expected missing record to return loaded=false without error, got loaded=%v err=%v", loaded, err)
	}
}

func testCreateInvalid(t *testing.T, s store.IStore) {
	half := record.Record{ID: "r", Lock: record.LockState{LockedAt: baseTime}}
	if err := s.Create(half); store.Code(err) != store.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for half-set lock, got %v", err)
	}
	if err := s.Create(record.Record{}); store.Code(err) != store.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for empty id, got %v", err)
	}
}

func testUpdate(t *testing.T, s store.IStore) {
	if err := s.Create(record.New("r", map[string]string{"a": "1"}, baseTime)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// acquire
	updated, err := s.Update("r", record.Condition{Lock: &record.LockState{}}, record.Assignment{Lock: lockOf("alice", true)})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Lock.Equal(*lockOf("alice", true)) {
		t.Errorf("Expected returned record to carry the new lock, got %v", updated.Lock)
	}
	if !updated.ModifiedAt.Equal(baseTime) {
		t.Errorf("Lock transitions must not touch modified_at, got %v", updated.ModifiedAt)
	}

	// guarded write
	later := baseTime.Add(time.Minute)
	updated, err = s.Update("r", record.Condition{Lock: lockOf("alice", true)}, record.Assignment{
		Fields:     map[string]string{"b": "2"},
		ModifiedAt: later,
	})
	if err != nil {
		t.Fatalf("Guarded update failed: %v", err)
	}
	if updated.Fields["a"] != "1" || updated.Fields["b"] != "2" {
		t.Errorf("Expected merged fields, got %v", updated.Fields)
	}

	// release
	if _, err := s.Update("r", record.Condition{}, record.Assignment{Lock: &record.LockState{}}); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	got, _, _ := s.Get("r")
	if got.Lock.IsSet() || got.Lock.HardLock {
		t.Errorf("Expected all lock fields to be cleared, got %v", got.Lock)
	}
	if !got.ModifiedAt.Equal(later) || got.Fields["b"] != "2" {
		t.Errorf("Unexpected record after release: %v", got)
	}

	// half-set locks are rejected
	if _, err := s.Update("r", record.Condition{}, record.Assignment{Lock: &record.LockState{LockedBy: "x"}}); store.Code(err) != store.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for half-set lock, got %v", err)
	}
}

func testConditionFailed(t *testing.T, s store.IStore) {
	if err := s.Create(record.New("r", map[string]string{"a": "1"}, baseTime)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Update("r", record.Condition{}, record.Assignment{Lock: lockOf("alice", false)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_, err := s.Update("r", record.Condition{Lock: &record.LockState{}}, record.Assignment{Lock: lockOf("bob", false)})
	if !store.IsConditionFailed(err) {
		t.Fatalf("Expected condition failure, got %v", err)
	}

	_, err = s.Update("r", record.Condition{Lock: lockOf("bob", false)}, record.Assignment{Fields: map[string]string{"a": "2"}})
	if !store.IsConditionFailed(err) {
		t.Fatalf("Expected condition failure, got %v", err)
	}

	got, _, _ := s.Get("r")
	if got.Lock.LockedBy != "alice" || got.Fields["a"] != "1" {
		t.Errorf("Failed updates must not write, got %v", got)
	}
}

func testNotFound(t *testing.T, s store.IStore) {
	if _, err := s.Update("missing", record.Condition{}, record.Assignment{Lock: &record.LockState{}}); !store.IsNotFound(err) {
		t.Errorf("Expected RetCNotFound on update, got %v", err)
	}
	if err := s.Delete("missing"); !store.IsNotFound(err) {
		t.Errorf("Expected RetCNotFound on delete, got %v", err)
	}
	if _, loaded, _ := s.Get("missing"); loaded {
		t.Errorf("Update of a missing record must not create it")
	}
}

func testConcurrentAcquire(t *testing.T, s store.IStore) {
	if err := s.Create(record.New("contended", nil, baseTime)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const contenders = 8
	var (
		wg    sync.WaitGroup
		wins  atomic.Int32
		fails atomic.Int32
		start = make(chan struct{})
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := s.Update("contended", record.Condition{Lock: &record.LockState{}},
				record.Assignment{Lock: lockOf(record.Principal(fmt.Sprintf("user-%d", i)), false)})
			switch {
			case err == nil:
				wins.Add(1)
			case store.IsConditionFailed(err):
				fails.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 || fails.Load() != contenders-1 {
		t.Errorf("Expected exactly one winner, got %d wins and %d condition failures", wins.Load(), fails.Load())
	}
}

// testRacingLockManagers lets principals with their own manager and handle acquire the same
// record at once. Exactly one acquire succeeds, the others see the winner's lock.
func testRacingLockManagers(t *testing.T, s store.IStore) {
	const (
		rounds     = 5
		contenders = 4
	)
	for round := 0; round < rounds; round++ {
		id := fmt.Sprintf("race-%d", round)
		if err := s.Create(record.New(id, map[string]string{"title": "draft"}, time.Now())); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		var (
			wg      sync.WaitGroup
			start   = make(chan struct{})
			errs    = make([]error, contenders)
			handles = make([]*record.Record, contenders)
		)
		for i := range handles {
			rec, ok, err := s.Get(id)
			if err != nil || !ok {
				t.Fatalf("Get(%s) = ok %v, err %v", id, ok, err)
			}
			handles[i] = &rec
		}
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				mgr := lockable.NewLockManager(s, lockable.WithAuditSink(nil))
				<-start
				errs[i] = mgr.Acquire(handles[i], record.Principal(fmt.Sprintf("user-%d", i)), false)
			}(i)
		}
		close(start)
		wg.Wait()

		winner := -1
		for i, err := range errs {
			switch {
			case err == nil:
				if winner >= 0 {
					t.Fatalf("round %d: user-%d and user-%d both acquired the lock", round, winner, i)
				}
				winner = i
			case errors.Is(err, lockable.ErrLockConflict):
			default:
				t.Fatalf("round %d: unexpected error for user-%d: %v", round, i, err)
			}
		}
		if winner < 0 {
			t.Fatalf("round %d: no acquire succeeded", round)
		}

		stored, _, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		want := record.Principal(fmt.Sprintf("user-%d", winner))
		if stored.Lock.LockedBy != want {
			t.Errorf("round %d: stored holder %q, want %q", round, stored.Lock.LockedBy, want)
		}
		for i, h := range handles {
			if h.Lock.LockedBy != want {
				t.Errorf("round %d: handle of user-%d shows holder %q, want %q", round, i, h.Lock.LockedBy, want)
			}
		}
	}
}

func testListDelete(t *testing.T, s store.IStore) {
	ids := map[string]bool{}
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("rec-%02d", i)
		ids[id] = true
		if err := s.Create(record.New(id, map[string]string{"n": fmt.Sprint(i)}, baseTime)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	recs, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != len(ids) {
		t.Fatalf("Expected %d records, got %d", len(ids), len(recs))
	}
	for _, rec := range recs {
		if !ids[rec.ID] {
			t.Errorf("Unexpected record %s in list", rec.ID)
		}
	}

	if err := s.Delete("rec-00"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, loaded, _ := s.Get("rec-00"); loaded {
		t.Errorf("Expected record to be gone after Delete")
	}
	recs, _ = s.List()
	if len(recs) != len(ids)-1 {
		t.Errorf("Expected %d records after delete, got %d", len(ids)-1, len(recs))
	}
}

func testDBInfo(t *testing.T, s store.IStore) {
	for i := 0; i < 5; i++ {
		if err := s.Create(record.New(fmt.Sprintf("rec-%d", i), nil, baseTime)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.RecordCount != 5 {
		t.Errorf("Expected record count 5, got %d", info.RecordCount)
	}
}
