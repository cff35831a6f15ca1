// Package testing provides the conformance suite for store.IStore implementations.
//
// Example usage:
//
//	storetesting.RunStoreTests(t, "LocalStore", func(t *testing.T) store.IStore {
//		return lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
//	})
package testing
