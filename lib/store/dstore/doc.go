// Package dstore implements a distributed, fault-tolerant record store using the
// Dragonboat RAFT consensus library. It provides a strongly consistent implementation
// of the store.IStore interface that can operate across multiple nodes.
//
// Architecture:
//
//   - Store Client: Implements store.IStore. It serializes operations into commands,
//     proposes them to the RAFT shard and turns the result codes back into *store.Error.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine (RecordStateMachine) that holds
//     the db.RecordDB and applies commands to it on every replica.
//
//   - Communication Protocol: Defined in the internal package (Command and Query).
//
// Conditional Updates:
//
//	An Update command carries the condition and the assignment. The state machine evaluates
//	the condition while applying the log entry, so the check sees exactly the state produced
//	by all earlier entries. Two lock acquisitions proposed concurrently on different nodes
//	are ordered by the log, the later one fails with RetCConditionFailed on every replica.
//	The write index of every operation is the RAFT log index.
//
// Read Operations:
//
//   - Linearizable Reads: Get and List use SyncRead, which waits until the local replica
//     has applied all committed entries.
//
//   - Stale Reads: GetDBInfo uses StaleRead, which may return slightly outdated
//     information but with lower latency.
//
// Error Handling and Retries:
//
//	When Dragonboat returns ErrSystemBusy, the operation is retried after a short delay,
//	up to 5 attempts. All operations have a configurable timeout.
//
// Snapshotting and Recovery:
//
//	The state machine snapshots through db.RecordDB.Save (fuzzy, writers are not blocked)
//	and recovers through db.RecordDB.Load followed by the log entries committed after the
//	snapshot.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	dbFactory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//
//	err = nh.StartConcurrentReplica(
//	    clusterMembers,
//	    false,
//	    dstore.CreateStateMachineFactory(dbFactory),
//	    shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// Deploy with an odd number of nodes (3, 5 or 7) so that a majority is always possible.
// For single node deployments use the lstore package.
package dstore
