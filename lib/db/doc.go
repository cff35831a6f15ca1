// Package db provides a standardized interface for record database implementations.
// It defines the RecordDB interface that the stores of this module build on, so that the
// storage engine can be swapped without touching the locking logic.
//
// Key Components:
//
//   - RecordDB Interface: The core interface that all database implementations must satisfy.
//     It provides Insert, Get, Delete and Range, the conditional Update used for every
//     lock transition and every guarded write, and persistence through Save and Load.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports the record count, an
//     estimated size and implementation specific metadata.
//
// Note on Conditional Updates:
//   - Update receives a record.Condition and a record.Assignment. The implementation must
//     evaluate the condition against the stored record and write the assignment without any
//     other write to the same id happening in between. This single primitive is what makes
//     lock acquisition a compare-and-set: of two concurrent acquires conditioned on the same
//     observed lock state, exactly one is applied.
//   - A failing condition leaves the stored record untouched and returns it, so that callers
//     can refresh their view.
//
// Note on Write Indices:
//   - All write operations receive a write index (the RAFT log index for replicated stores,
//     a local counter otherwise). The database tracks the highest index seen, it only ever
//     increases.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dRL/lib/db/engines/maple) provides a
// sharded in-memory implementation of RecordDB with binary persistence.
//
// The testing package (github.com/ValentinKolb/dRL/lib/db/testing) provides a conformance
// suite every implementation should pass.
package db
