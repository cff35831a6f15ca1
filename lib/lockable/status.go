package lockable

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dRL/lib/record"
)

// Status is the derived state of a lock at a given instant
type Status int

const (
	StatusUnlocked Status = iota
	StatusSoft
	StatusHard
)

func (s Status) String() string {
	switch s {
	case StatusUnlocked:
		return "unlocked"
	case StatusSoft:
		return "soft"
	case StatusHard:
		return "hard"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ComputeStatus derives the lock status from the stored lock fields.
// A lock whose age reached the expiration interval is unlocked, whatever is still stored.
func ComputeStatus(state record.LockState, now time.Time, interval time.Duration) Status {
	if !state.IsSet() {
		return StatusUnlocked
	}
	if now.Sub(state.LockedAt) >= interval {
		return StatusUnlocked
	}
	if state.HardLock {
		return StatusHard
	}
	return StatusSoft
}

// SecondsRemaining returns the whole seconds until the lock expires. The result is negative
// once the lock expired and tells how long ago that happened. It is 0 for an absent lock.
func SecondsRemaining(state record.LockState, now time.Time, interval time.Duration) int64 {
	if !state.IsSet() {
		return 0
	}
	return int64(interval/time.Second) - floorSeconds(now.Sub(state.LockedAt))
}

// floorSeconds rounds d down to whole seconds
func floorSeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second < 0 {
		s--
	}
	return s
}

// IsLockedBy reports whether p is the stored holder, regardless of expiration.
// An empty principal holds nothing, also on an unlocked record.
func IsLockedBy(state record.LockState, p record.Principal) bool {
	return !p.IsZero() && state.LockedBy == p
}

// LockApplies reports whether the lock blocks p: it is unexpired and held by someone else.
// A lock never applies to its own holder.
func LockApplies(state record.LockState, p record.Principal, now time.Time, interval time.Duration) bool {
	return ComputeStatus(state, now, interval) != StatusUnlocked && state.LockedBy != p
}

// CheckWrite is the write guard: it fails with ErrHardLockActive while a hard lock is active.
// This includes writes of the holder, only Release and ReleaseFor pass a hard lock.
func CheckWrite(state record.LockState, now time.Time, interval time.Duration) error {
	if ComputeStatus(state, now, interval) == StatusHard {
		return fmt.Errorf("%w (held by %q since %s)", ErrHardLockActive, state.LockedBy, state.LockedAt.Format(time.RFC3339))
	}
	return nil
}
