package lockable

import (
	"errors"
	"testing"
	"time"
)

func TestEditSessionCommit(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "r1")

	token, err := BeginEdit(f.mgr, rec, "A")
	if err != nil {
		t.Fatalf("BeginEdit failed: %v", err)
	}
	if token.AlreadyLocked || !token.LockedAt.Equal(t0) || token.RecordID != "r1" {
		t.Fatalf("unexpected token %+v", token)
	}

	f.clock.Advance(30 * time.Second)
	if err := CommitEdit(f.mgr, rec, "A", token, map[string]string{"title": "final"}); err != nil {
		t.Fatalf("CommitEdit failed: %v", err)
	}
	stored := f.load(t, "r1")
	if stored.Fields["title"] != "final" || stored.Lock.IsSet() {
		t.Errorf("unexpected record after commit: %+v", stored)
	}
}

func TestBeginEditAlreadyLocked(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "r1")
	if err := f.mgr.Acquire(rec, "A", false); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Second)

	token, err := BeginEdit(f.mgr, rec, "A")
	if err != nil {
		t.Fatalf("BeginEdit failed: %v", err)
	}
	if !token.AlreadyLocked {
		t.Error("token not marked as already locked")
	}
	if !rec.Lock.LockedAt.Equal(t0) {
		t.Error("existing lock was refreshed")
	}

	if _, err := BeginEdit(f.mgr, f.load(t, "r1"), "B"); !errors.Is(err, ErrLockConflict) {
		t.Errorf("expected ErrLockConflict for B, got %v", err)
	}
}

func TestCheckEditLostLockUnmodified(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "r1")
	token, err := BeginEdit(f.mgr, rec, "A")
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Set(at(700))

	if err := CheckEdit(f.mgr, rec, "A", token); err != nil {
		t.Fatalf("CheckEdit failed: %v", err)
	}
	if !rec.Lock.LockedAt.Equal(at(700)) || rec.Lock.LockedBy != "A" {
		t.Errorf("lock not silently re-acquired: %+v", rec.Lock)
	}
}

func TestCheckEditLostLockModified(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "r1")
	token, err := BeginEdit(f.mgr, rec, "A")
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Set(at(700))
	other := f.load(t, "r1")
	if err := f.mgr.Save(other, map[string]string{"title": "by B"}); err != nil {
		t.Fatal(err)
	}

	if err := CheckEdit(f.mgr, rec, "A", token); !errors.Is(err, ErrNotLockedAndModified) {
		t.Errorf("expected ErrNotLockedAndModified, got %v", err)
	}
}

func TestCheckEditLockedBySomeoneElse(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "r1")
	token, err := BeginEdit(f.mgr, rec, "A")
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Set(at(700))
	if err := f.mgr.Acquire(f.load(t, "r1"), "B", false); err != nil {
		t.Fatal(err)
	}

	if err := CheckEdit(f.mgr, rec, "A", token); !errors.Is(err, ErrLockedBySomeoneElse) {
		t.Errorf("expected ErrLockedBySomeoneElse, got %v", err)
	}
	if err := CommitEdit(f.mgr, rec, "A", token, map[string]string{"title": "lost"}); !errors.Is(err, ErrLockedBySomeoneElse) {
		t.Errorf("CommitEdit: expected ErrLockedBySomeoneElse, got %v", err)
	}
	if f.load(t, "r1").Fields["title"] != "draft" {
		t.Error("rejected commit reached storage")
	}
}

func TestCheckEditLockedInAnotherSession(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "r1")
	token, err := BeginEdit(f.mgr, rec, "A")
	if err != nil {
		t.Fatal(err)
	}

	// the same principal releases and opens a second session
	f.clock.Advance(time.Minute)
	second := f.load(t, "r1")
	if err := f.mgr.ReleaseFor(second, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := BeginEdit(f.mgr, second, "A"); err != nil {
		t.Fatal(err)
	}

	if err := CheckEdit(f.mgr, rec, "A", token); !errors.Is(err, ErrLockedInAnotherSession) {
		t.Errorf("expected ErrLockedInAnotherSession, got %v", err)
	}
}
