package lockable

import "errors"

var (
	// ErrInvalidPrincipal is returned when a principal cannot be resolved to a known identity.
	ErrInvalidPrincipal = errors.New("lockable: invalid principal")
	// ErrLockConflict is returned when an unexpired lock of another principal applies, or when
	// a principal tries to release a lock it did not initiate.
	ErrLockConflict = errors.New("lockable: lock conflict")
	// ErrHardLockActive is returned for writes while a hard lock is active, even for the holder.
	ErrHardLockActive = errors.New("lockable: hard lock active")

	// ErrNotLockedAndModified means the edit session lost its lock and the record changed meanwhile.
	ErrNotLockedAndModified = errors.New("lockable: record is not locked and was modified")
	// ErrLockedBySomeoneElse means another principal locked the record during the edit session.
	ErrLockedBySomeoneElse = errors.New("lockable: record is locked by someone else")
	// ErrLockedInAnotherSession means the same principal re-locked the record in another session.
	ErrLockedInAnotherSession = errors.New("lockable: record was locked in another session")

	errNilRecord = errors.New("lockable: nil record")
)
