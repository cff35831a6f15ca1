// Package lstore implements a local, in-memory, single-node record store based on the
// store.IStore interface. It is a thin wrapper around any db.RecordDB implementation with
// automatic write index management. Data is not persisted between process restarts.
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that is incremented
//     with each write operation and passed to the db as the write index.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.RecordDB supports the requested feature. Unsupported operations return
//     RetCUnsupportedOperation.
//
//   - Atomicity: Conditional updates are delegated to db.RecordDB.Update, which the maple
//     engine executes inside a single map Compute call. The store itself takes no locks.
//
// Usage Example:
//
//	factory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	err := s.Create(record.New("story-1", map[string]string{"title": "draft"}, time.Now()))
//	rec, exists, err := s.Get("story-1")
//
// For deployments with more than one node use the dstore package, which provides a
// RAFT-based implementation of the same interface.
package lstore
