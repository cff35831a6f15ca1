// Package record defines the data stored for a lockable record: its identity, its payload
// fields, the modification timestamp and the lock fields (LockState).
//
// The package is pure data. It knows nothing about clocks or expiration intervals; whether
// a stored lock is still valid is computed by the lockable package.
//
// Invariants:
//   - LockedAt and LockedBy are either both set or both cleared (LockState.Validate).
//   - HardLock is only set together with an active lock.
//
// Conditional Updates:
//
//	Stores change records exclusively through a conditional update described by a
//	Condition (what the stored lock fields must look like) and an Assignment (what to
//	write). The lock fields are always assigned together, so a half-set lock can never be
//	produced by an update.
//
// Binary Format:
//
//	Marshal/Unmarshal and their list and update variants implement a compact binary format
//	used by the engine snapshots, the RAFT log and the binary RPC serializer.
package record
