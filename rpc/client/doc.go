// Package client implements the RPC clients of dRL.
// It provides implementations of store.IStore and lockable.ILockManager that forward every
// call to a remote shard through a transport and a serializer.
//
// Key Components:
//
//   - NewRPCStore: a store.IStore for the record operations (create, get, delete, list and
//     database info). Conditional updates are not exposed remotely, Update always fails with
//     store.RetCUnsupportedOperation.
//
//   - NewRPCLockMgr: a lockable.ILockManager. The server applies each operation to the record as
//     currently stored and sends it back; the lock fields and modification time are then
//     mirrored into the caller's handle, also when the operation was denied.
//
// Errors of the remote lock manager arrive as errors that errors.Is matches against the
// sentinels of the lockable package (lockable.ErrLockConflict, ...), store errors arrive as
// *store.Error with the original code.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//	s := serializer.NewBinarySerializer()
//
//	records, _ := client.NewRPCStore(100, config, http.NewHttpClientTransport(), s)
//	locks, _ := client.NewRPCLockMgr(100, config, http.NewHttpClientTransport(), s)
//
//	rec, ok, _ := records.Get("invoice-17")
//	if ok {
//	  if err := locks.Acquire(&rec, "alice", false); errors.Is(err, lockable.ErrLockConflict) {
//	    fmt.Println("locked by", rec.Lock.LockedBy)
//	  }
//	}
//
// Thread Safety:
//
//	All clients are safe for concurrent use. A single handle must not be passed to
//	concurrent calls.
package client
