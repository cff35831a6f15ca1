package lockable

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dRL/lib/record"
)

// EditToken remembers the lock an edit session started with. It is returned by BeginEdit and
// must be passed back to CheckEdit / CommitEdit when the edit is submitted.
type EditToken struct {
	RecordID      string    `json:"record_id"`
	LockedAt      time.Time `json:"locked_at"`
	ModifiedAt    time.Time `json:"modified_at"`
	AlreadyLocked bool      `json:"already_locked"`
}

// BeginEdit starts an edit session of p on rec.
// An unlocked record is soft locked for p. If p already holds the lock it is not refreshed and
// the token is marked AlreadyLocked. A lock of someone else fails with ErrLockConflict.
func BeginEdit(mgr ILockManager, rec *record.Record, p record.Principal) (EditToken, error) {
	info, err := mgr.Inspect(rec, p)
	if err != nil {
		return EditToken{}, err
	}

	token := EditToken{RecordID: rec.ID}
	switch {
	case info.Status == StatusUnlocked:
		if err := mgr.Acquire(rec, p, false); err != nil {
			return EditToken{}, err
		}
	case info.LockedBySelf:
		token.AlreadyLocked = true
	default:
		return EditToken{}, fmt.Errorf("%w: record %q is locked by %q", ErrLockConflict, rec.ID, info.LockedBy)
	}
	token.LockedAt = rec.Lock.LockedAt
	token.ModifiedAt = rec.ModifiedAt
	return token, nil
}

// CheckEdit verifies that an edit session may still be committed.
// If the lock was lost but the record is unchanged, it is silently acquired again.
func CheckEdit(mgr ILockManager, rec *record.Record, p record.Principal, token EditToken) error {
	info, err := mgr.Inspect(rec, p)
	if err != nil {
		return err
	}

	switch {
	case info.Status == StatusUnlocked:
		if !rec.ModifiedAt.Equal(token.ModifiedAt) {
			return fmt.Errorf("%w: record %q changed at %s", ErrNotLockedAndModified, rec.ID, rec.ModifiedAt.Format(time.RFC3339))
		}
		return mgr.Acquire(rec, p, false)
	case !info.LockedBySelf:
		return fmt.Errorf("%w: record %q is locked by %q", ErrLockedBySomeoneElse, rec.ID, info.LockedBy)
	case !info.LockedAt.Equal(token.LockedAt):
		return fmt.Errorf("%w: record %q", ErrLockedInAnotherSession, rec.ID)
	}
	return nil
}

// CommitEdit checks the session, saves fields and releases the lock of p.
func CommitEdit(mgr ILockManager, rec *record.Record, p record.Principal, token EditToken, fields map[string]string) error {
	if err := CheckEdit(mgr, rec, p, token); err != nil {
		return err
	}
	if err := mgr.Save(rec, fields); err != nil {
		return err
	}
	return mgr.ReleaseFor(rec, p)
}
