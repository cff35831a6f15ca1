package record

import (
	"time"
)

// Condition is the precondition of a conditional update.
// The zero Condition only requires the record to exist.
type Condition struct {
	// Lock, when non-nil, requires the stored lock fields to equal *Lock.
	Lock *LockState `json:"lock,omitempty"`
}

// Holds reports whether the condition is satisfied by the stored record.
func (c Condition) Holds(stored Record) bool {
	if c.Lock != nil && !c.Lock.Equal(stored.Lock) {
		return false
	}
	return true
}

// Assignment lists the fields written by a conditional update. Nil members are left untouched.
type Assignment struct {
	// Lock replaces all three lock fields at once.
	Lock *LockState `json:"lock,omitempty"`
	// Fields is merged into the stored fields.
	Fields map[string]string `json:"fields,omitempty"`
	// ModifiedAt replaces the modification timestamp if non-zero.
	ModifiedAt time.Time `json:"modified_at"`
}

// Validate checks that the assignment does not produce a half-set lock.
func (a Assignment) Validate() error {
	if a.Lock != nil {
		return a.Lock.Validate()
	}
	return nil
}

// IsEmpty reports whether the assignment writes nothing.
func (a Assignment) IsEmpty() bool {
	return a.Lock == nil && a.Fields == nil && a.ModifiedAt.IsZero()
}

// Apply returns a copy of rec with the assignment applied. rec itself is not modified.
func (a Assignment) Apply(rec Record) Record {
	out := rec.Clone()
	if a.Lock != nil {
		out.Lock = *a.Lock
	}
	if a.Fields != nil {
		if out.Fields == nil {
			out.Fields = make(map[string]string, len(a.Fields))
		}
		for k, v := range a.Fields {
			out.Fields[k] = v
		}
	}
	if !a.ModifiedAt.IsZero() {
		out.ModifiedAt = a.ModifiedAt.Round(0).UTC()
	}
	return out
}

// Mirror copies the assigned members of updated into the in-memory handle rec.
// Members the assignment did not write are left as they are in the handle.
func (a Assignment) Mirror(rec *Record, updated Record) {
	if a.Lock != nil {
		rec.Lock = updated.Lock
	}
	if a.Fields != nil {
		rec.Fields = copyFields(updated.Fields)
	}
	if !a.ModifiedAt.IsZero() {
		rec.ModifiedAt = updated.ModifiedAt
	}
}
