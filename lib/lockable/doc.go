/*
Package lockable implements lease-based advisory locks on records.

A lock is made of three fields stored on the record itself (locked_at, locked_by and
hard_lock). There is no lock table and no timer: a lock expires implicitly once its age
reaches the configured expiration interval, and its status is always derived from the
stored fields and the current time.

	unlocked --Acquire--> soft/hard --interval elapsed--> unlocked (implicit)
	soft/hard --Release / ReleaseFor(holder)--> unlocked

Soft locks are advisory, they only make Acquire fail for other principals. Hard locks
additionally block every write through Manager.Save, including writes of the holder.

Every transition is a single conditional update of the store (see store.IStore.Update),
conditioned on the lock fields the caller last observed. If another transition won the race,
the handle is reloaded and the decision is taken again, so two principals acquiring at the
same time never both succeed.

The edit session helpers (BeginEdit, CheckEdit and CommitEdit) implement the usual
lock-on-open, verify-on-submit flow of an editing form.
*/
package lockable
