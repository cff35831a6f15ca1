package lockable

import "github.com/ValentinKolb/dRL/lib/record"

// ILockManager is the interface of the lock operations on record handles.
//
// A handle is a *record.Record the caller read from storage earlier. Every successful
// operation mirrors the written lock fields (and for Save the fields and modification time)
// into the handle, so the caller never has to reload it. All errors are either one of the
// sentinels of this package (wrapped with context) or storage errors.
type ILockManager interface {
	// Acquire locks the record for p. Fails with ErrLockConflict if an unexpired lock of
	// another principal applies. Re-acquiring an own lock refreshes its timestamp.
	// A conflict seen on the handle is checked against storage before it is reported.
	Acquire(rec *record.Record, p record.Principal, hard bool) error
	// Release clears the lock unconditionally, whoever holds it.
	Release(rec *record.Record) error
	// ReleaseFor clears the lock only if p is the stored holder, expired or not.
	// Fails with ErrLockConflict otherwise.
	ReleaseFor(rec *record.Record, p record.Principal) error
	// Save merges fields into the record and sets its modification time.
	// A nil map writes the fields of the handle. Fails with ErrHardLockActive under a hard lock.
	Save(rec *record.Record, fields map[string]string) error
	// Inspect refreshes the handle and reports the lock as seen by p (p may be empty).
	Inspect(rec *record.Record, p record.Principal) (Info, error)
	// Locked returns all records carrying an unexpired lock.
	Locked() ([]record.Record, error)
	// Unlocked returns all records without an unexpired lock.
	Unlocked() ([]record.Record, error)
}
