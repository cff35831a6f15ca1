package lockable

import (
	"sort"
	"testing"
	"time"
)

func TestInspect(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "r1")

	info, err := f.mgr.Inspect(rec, "")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Status != StatusUnlocked || info.Applies || info.LockedBySelf || info.SecondsRemaining != 0 {
		t.Errorf("unexpected info for unlocked record: %+v", info)
	}

	if err := f.mgr.Acquire(rec, "A", true); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	f.clock.Set(at(550))

	other := f.load(t, "r1")
	info, err = f.mgr.Inspect(other, "B")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Status != StatusHard || !info.Applies || info.LockedBySelf || info.Warn || info.LockedBy != "A" {
		t.Errorf("unexpected info for B: %+v", info)
	}
	if info.SecondsRemaining != 50 {
		t.Errorf("remaining = %d, want 50", info.SecondsRemaining)
	}

	info, err = f.mgr.Inspect(rec, "A")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Applies || !info.LockedBySelf || !info.Warn {
		t.Errorf("unexpected info for A: %+v", info)
	}

	f.clock.Set(at(601))
	info, err = f.mgr.Inspect(rec, "A")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Status != StatusUnlocked || info.Warn || !info.LockedBySelf || info.SecondsRemaining != -1 {
		t.Errorf("unexpected info after expiry: %+v", info)
	}
}

func TestInspectRefreshesHandle(t *testing.T) {
	f := newFixture(t)
	stale := f.create(t, "r1")
	fresh := f.load(t, "r1")
	if err := f.mgr.Acquire(fresh, "A", false); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := f.mgr.Inspect(stale, ""); err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !stale.Lock.Equal(fresh.Lock) {
		t.Errorf("handle not refreshed: %+v", stale.Lock)
	}
}

func TestLockedUnlocked(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.create(t, id)
	}
	if err := f.mgr.Acquire(f.load(t, "a"), "A", false); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(300 * time.Second)
	if err := f.mgr.Acquire(f.load(t, "b"), "B", true); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(301 * time.Second)

	ids := func(fn func() ([]string, error)) []string {
		got, err := fn()
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		sort.Strings(got)
		return got
	}
	locked := ids(func() ([]string, error) {
		recs, err := f.mgr.Locked()
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out, err
	})
	unlocked := ids(func() ([]string, error) {
		recs, err := f.mgr.Unlocked()
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out, err
	})

	// "a" expired at 600, "b" is still held
	if len(locked) != 1 || locked[0] != "b" {
		t.Errorf("Locked() = %v, want [b]", locked)
	}
	if len(unlocked) != 3 || unlocked[0] != "a" || unlocked[1] != "c" || unlocked[2] != "d" {
		t.Errorf("Unlocked() = %v, want [a c d]", unlocked)
	}
}
