package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
)

// DBFactory is a function that creates a new instance of a RecordDB implementation
type DBFactory func() db.RecordDB

// RunRecordDBTests runs a comprehensive test suite for a RecordDB implementation.
func RunRecordDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory())
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory())
		})

		t.Run("ConditionalUpdate", func(t *testing.T) {
			testConditionalUpdate(t, factory())
		})

		t.Run("ConcurrentAcquire", func(t *testing.T) {
			testConcurrentAcquire(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Range", func(t *testing.T) {
			testRange(t, factory())
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.RecordDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func lockOf(by record.Principal, hard bool) *record.LockState {
	l := record.NewLock(baseTime, by, hard)
	return &l
}

func unlocked() *record.LockState {
	return &record.LockState{}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	rec := record.New("story-1", map[string]string{"title": "first"}, baseTime)

	if !database.Insert(rec, 1) {
		t.Fatalf("Expected insert of %s to succeed", rec.ID)
	}

	got, exists := database.Get(rec.ID)
	if !exists {
		t.Fatalf("Expected record %s to exist after Insert", rec.ID)
	}
	if got.Fields["title"] != "first" || !got.ModifiedAt.Equal(baseTime) || got.Lock.IsSet() {
		t.Errorf("Unexpected record after Insert: %v", got)
	}

	// a second insert with the same id must not overwrite
	if database.Insert(record.New(rec.ID, map[string]string{"title": "second"}, baseTime), 2) {
		t.Errorf("Expected insert of an existing id to fail")
	}
	got, _ = database.Get(rec.ID)
	if got.Fields["title"] != "first" {
		t.Errorf("Existing record was overwritten: %v", got)
	}

	if _, exists := database.Get("nonexistent"); exists {
		t.Errorf("Expected nonexistent record to return exists=false")
	}

	// Get must return a copy
	got.Fields["title"] = "changed"
	again, _ := database.Get(rec.ID)
	if again.Fields["title"] != "first" {
		t.Errorf("Get should return a copy, not a reference to the stored fields")
	}
}

func testUpdate(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureUpdate|db.FeatureGet)

	database.Insert(record.New("r", map[string]string{"a": "1", "b": "2"}, baseTime), 1)

	later := baseTime.Add(time.Hour)
	updated, res := database.Update("r", record.Condition{}, record.Assignment{
		Fields:     map[string]string{"b": "3", "c": "4"},
		ModifiedAt: later,
	}, 2)
	if res != db.UpdateApplied {
		t.Fatalf("Expected update to be applied, got %s", res)
	}

	for k, want := range map[string]string{"a": "1", "b": "3", "c": "4"} {
		if updated.Fields[k] != want {
			t.Errorf("Expected field %s=%s, got %q", k, want, updated.Fields[k])
		}
	}
	if !updated.ModifiedAt.Equal(later) {
		t.Errorf("Expected modified_at %v, got %v", later, updated.ModifiedAt)
	}

	stored, _ := database.Get("r")
	if stored.Fields["c"] != "4" {
		t.Errorf("Update was not stored: %v", stored)
	}

	// an assignment without ModifiedAt leaves the timestamp alone
	stored, _ = database.Update("r", record.Condition{}, record.Assignment{Lock: lockOf("alice", false)}, 3)
	if !stored.ModifiedAt.Equal(later) {
		t.Errorf("Lock change must not touch modified_at, got %v", stored.ModifiedAt)
	}

	if _, res := database.Update("nonexistent", record.Condition{}, record.Assignment{Fields: map[string]string{"x": "y"}}, 4); res != db.UpdateNotFound {
		t.Errorf("Expected UpdateNotFound, got %s", res)
	}
	if _, exists := database.Get("nonexistent"); exists {
		t.Errorf("Update of a missing record must not create it")
	}
}

func testConditionalUpdate(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureConditionalUpdate)

	database.Insert(record.New("r", nil, baseTime), 1)

	// acquire: only if unlocked
	rec, res := database.Update("r", record.Condition{Lock: unlocked()}, record.Assignment{Lock: lockOf("alice", false)}, 2)
	if res != db.UpdateApplied || rec.Lock.LockedBy != "alice" {
		t.Fatalf("Expected alice to acquire the lock, got %s %v", res, rec)
	}

	// second acquire with the same stale condition fails and returns the stored record
	rec, res = database.Update("r", record.Condition{Lock: unlocked()}, record.Assignment{Lock: lockOf("bob", false)}, 3)
	if res != db.UpdateConditionFailed {
		t.Fatalf("Expected condition failure, got %s", res)
	}
	if rec.Lock.LockedBy != "alice" {
		t.Errorf("Expected the stored record (held by alice) on failure, got %v", rec)
	}

	// guarded write with the matching lock succeeds
	_, res = database.Update("r", record.Condition{Lock: lockOf("alice", false)}, record.Assignment{
		Fields: map[string]string{"title": "by alice"},
	}, 4)
	if res != db.UpdateApplied {
		t.Errorf("Expected guarded write of the holder to be applied, got %s", res)
	}

	// hard flag is part of the condition
	_, res = database.Update("r", record.Condition{Lock: lockOf("alice", true)}, record.Assignment{
		Fields: map[string]string{"title": "wrong"},
	}, 5)
	if res != db.UpdateConditionFailed {
		t.Errorf("Expected condition with a different hard flag to fail, got %s", res)
	}

	stored, _ := database.Get("r")
	if stored.Fields["title"] != "by alice" {
		t.Errorf("Failed update must not write, got %v", stored)
	}
}

func testConcurrentAcquire(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureConditionalUpdate)

	const (
		records    = 16
		contenders = 8
	)

	for i := 0; i < records; i++ {
		database.Insert(record.New(fmt.Sprintf("rec-%d", i), nil, baseTime), 1)
	}

	var (
		wg      sync.WaitGroup
		wins    [records]atomic.Int32
		idx     atomic.Uint64
		startCh = make(chan struct{})
	)

	for c := 0; c < contenders; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			<-startCh
			who := record.Principal(fmt.Sprintf("user-%d", c))
			for i := 0; i < records; i++ {
				_, res := database.Update(fmt.Sprintf("rec-%d", i), record.Condition{Lock: unlocked()},
					record.Assignment{Lock: lockOf(who, false)}, idx.Add(1))
				if res == db.UpdateApplied {
					wins[i].Add(1)
				}
			}
		}(c)
	}
	close(startCh)
	wg.Wait()

	for i := range wins {
		if n := wins[i].Load(); n != 1 {
			t.Errorf("Expected exactly one winner for rec-%d, got %d", i, n)
		}
	}
}

func testDelete(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureGet)

	database.Insert(record.New("r", nil, baseTime), 1)

	if !database.Delete("r", 2) {
		t.Errorf("Expected delete of an existing record to return true")
	}
	if _, exists := database.Get("r"); exists {
		t.Errorf("Expected record to be gone after Delete")
	}
	if database.Delete("r", 3) {
		t.Errorf("Expected second delete to return false")
	}

	// id can be reused after delete
	if !database.Insert(record.New("r", nil, baseTime), 4) {
		t.Errorf("Expected insert after delete to succeed")
	}
}

func testRange(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureRange)

	const n = 100
	for i := 0; i < n; i++ {
		database.Insert(record.New(fmt.Sprintf("rec-%03d", i), nil, baseTime), uint64(i+1))
	}

	seen := map[string]bool{}
	database.Range(func(rec record.Record) bool {
		seen[rec.ID] = true
		return true
	})
	if len(seen) != n {
		t.Errorf("Expected Range to visit %d records, got %d", n, len(seen))
	}

	visited := 0
	database.Range(func(rec record.Record) bool {
		visited++
		return visited < 10
	})
	if visited != 10 {
		t.Errorf("Expected Range to stop after 10 records, visited %d", visited)
	}
}

func testWriteIdx(t *testing.T, database db.RecordDB) {
	defer database.Close()

	database.Insert(record.New("r", nil, baseTime), 10)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Expected write index 10, got %d", idx)
	}

	database.SetWriteIdx(5)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Write index must never decrease, got %d", idx)
	}

	database.SetWriteIdx(20)
	if idx := database.WriteIdx(); idx != 20 {
		t.Errorf("Expected write index 20, got %d", idx)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()

	requireFeature(t, database, db.FeatureSave|db.FeatureLoad|db.FeatureInsert|db.FeatureGet)

	const n = 250
	for i := 0; i < n; i++ {
		rec := record.New(fmt.Sprintf("rec-%d", i), map[string]string{"n": fmt.Sprint(i)}, baseTime)
		if i%3 == 0 {
			rec.Lock = *lockOf(record.Principal(fmt.Sprintf("user-%d", i)), i%2 == 0)
		}
		database.Insert(rec, uint64(i+1))
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory()
	defer restored.Close()

	// pre-existing content must be replaced
	restored.Insert(record.New("stale", nil, baseTime), 1)

	if err := restored.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, exists := restored.Get("stale"); exists {
		t.Errorf("Load must replace the existing content")
	}
	if idx := restored.WriteIdx(); idx != n {
		t.Errorf("Expected write index %d after load, got %d", n, idx)
	}

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("rec-%d", i)
		want, _ := database.Get(id)
		got, exists := restored.Get(id)
		if !exists {
			t.Fatalf("Record %s missing after load", id)
		}
		if got.Fields["n"] != want.Fields["n"] || !got.Lock.Equal(want.Lock) || !got.ModifiedAt.Equal(want.ModifiedAt) {
			t.Errorf("Record %s differs after load: got %v want %v", id, got, want)
		}
	}

	if err := restored.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Expected Load of garbage to fail")
	}
}

func testInfo(t *testing.T, database db.RecordDB) {
	defer database.Close()

	for i := 0; i < 10; i++ {
		database.Insert(record.New(fmt.Sprintf("rec-%d", i), map[string]string{"k": "v"}, baseTime), uint64(i+1))
	}

	info := database.GetInfo()
	if info.RecordCount != 10 {
		t.Errorf("Expected record count 10, got %d", info.RecordCount)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s is listed but not supported", f)
		}
	}
}
