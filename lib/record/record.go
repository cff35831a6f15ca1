package record

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Principal
// --------------------------------------------------------------------------

// Principal identifies an actor that can hold a lock. The empty Principal means "nobody".
// Equality of principals is plain value equality on the resolved identity.
type Principal string

// IsZero reports whether p is the empty principal.
func (p Principal) IsZero() bool {
	return p == ""
}

// --------------------------------------------------------------------------
// Lock State
// --------------------------------------------------------------------------

// LockState holds the lock fields of a record.
// A zero LockedAt together with an empty LockedBy means the record carries no lock.
type LockState struct {
	LockedAt time.Time `json:"locked_at"`
	LockedBy Principal `json:"locked_by,omitempty"`
	HardLock bool      `json:"hard_lock,omitempty"`
}

// IsSet reports whether lock fields are stored. This says nothing about whether the lock
// is still valid, expiration is derived from the clock (see the lockable package).
func (s LockState) IsSet() bool {
	return !s.LockedAt.IsZero()
}

// Equal compares two lock states field by field. Timestamps are compared as instants.
func (s LockState) Equal(o LockState) bool {
	return s.LockedAt.Equal(o.LockedAt) && s.LockedBy == o.LockedBy && s.HardLock == o.HardLock
}

// Validate checks that the lock fields are either all set or all cleared.
func (s LockState) Validate() error {
	if s.LockedAt.IsZero() != s.LockedBy.IsZero() {
		return fmt.Errorf("record: half-set lock (locked_at=%v, locked_by=%q)", s.LockedAt, s.LockedBy)
	}
	if s.HardLock && !s.IsSet() {
		return fmt.Errorf("record: hard_lock set without an active lock")
	}
	return nil
}

// NewLock returns the lock state written by an acquire at the given instant.
// The monotonic clock reading is stripped so the value survives serialization unchanged.
func NewLock(at time.Time, by Principal, hard bool) LockState {
	return LockState{
		LockedAt: at.Round(0).UTC(),
		LockedBy: by,
		HardLock: hard,
	}
}

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Record is a lockable record as held by a store. Fields is the payload of the record and
// is never interpreted by the locking logic.
type Record struct {
	ID         string            `json:"id"`
	Fields     map[string]string `json:"fields,omitempty"`
	ModifiedAt time.Time         `json:"modified_at"`
	Lock       LockState         `json:"lock"`
}

// New creates an unlocked record.
func New(id string, fields map[string]string, now time.Time) Record {
	return Record{
		ID:         id,
		Fields:     copyFields(fields),
		ModifiedAt: now.Round(0).UTC(),
	}
}

// Validate checks the record invariants.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record: empty id")
	}
	return r.Lock.Validate()
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Fields = copyFields(r.Fields)
	return r
}

// String implements fmt.Stringer.
func (r Record) String() string {
	if !r.Lock.IsSet() {
		return fmt.Sprintf("Record{id=%s, fields=%d, unlocked}", r.ID, len(r.Fields))
	}
	return fmt.Sprintf("Record{id=%s, fields=%d, locked_by=%s, locked_at=%s, hard=%t}",
		r.ID, len(r.Fields), r.Lock.LockedBy, r.Lock.LockedAt.Format(time.RFC3339), r.Lock.HardLock)
}

func copyFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
