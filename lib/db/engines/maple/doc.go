// Package maple implements an in-memory record database (RecordDB) built on sharded
// concurrent maps. It provides a complete implementation of the db.RecordDB interface
// with a focus on thread safety and atomic conditional updates.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.RecordDB. It manages the
//     shards and maintains a monotonically increasing write index. The write index itself
//     is provided by the caller (the RAFT log index in a replicated store, a local counter
//     in a local store).
//
//   - Shard: A partition of the database holding a subset of the records in an
//     xsync.MapOf keyed by record id. Record ids are spread across shards with the
//     seeded FNV-1a hash of the util package.
//
//   - Entry: A stored record together with the write index of its last change.
//
// Internal Mechanisms:
//
//   - Conditional Updates: Update runs the condition check and the assignment inside a
//     single xsync.MapOf.Compute call. Compute holds the bucket lock of the id for the whole
//     callback, so two concurrent lock acquisitions on the same record are serialized and
//     the second one sees the lock written by the first.
//
//   - Copy Semantics: Records are cloned on the way in and on the way out. Callers can
//     never modify a stored field map.
//
//   - Persistence Format: The database uses a compact binary format with the
//     following structure:
//     1. Magic number "MAPLEREC" to identify the file format
//     2. Version number (currently 1)
//     3. Database seed value for shard distribution
//     4. Number of entries
//     5. For each entry: write index, record length, record bytes (record package format)
//     Save produces a fuzzy snapshot without blocking writers. Load replaces the whole
//     content atomically and blocks all operations while doing so.
//
//   - Metrics: GetInfo reports the record count, an estimated payload size and the shard
//     distribution quality.
package maple
