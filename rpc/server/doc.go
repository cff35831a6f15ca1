// Package server implements the RPC server of dRL.
//
// A server hosts any number of shards. Every shard wraps one store.IStore (local, RAFT
// replicated or Redis backed) and an IRPCServerAdapter that turns decoded messages into
// calls against that store.
//
// Key Components:
//
//   - IRPCServerAdapter: handles a single request against the store of a shard.
//
//   - NewRecordServerAdapter: create, get, delete, list and database info.
//     There is no update message: records can only be written through the lock manager.
//
//   - NewLockManagerServerAdapter: acquire, release, releaseFor, save, inspect, locked and
//     unlocked. Every lock operation loads the current record, runs a lockable.Manager on it
//     and answers with the record as stored afterwards. All other messages go to the
//     record adapter.
//
//   - NewRPCServer: creates the shards from a common.ServerConfig and serves them over a
//     transport.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocal},
//	    {ShardID: 200, Type: common.ShardTypeRedis},
//	  },
//	  RedisURL:         "redis://localhost:6379/0",
//	  Endpoint:         "0.0.0.0:8080",
//	  TimeoutSecond:    5,
//	  ExpirationSecond: 600,
//	  WarningSecond:    540,
//	  LogLevel:         "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// When a dstore shard is configured the RAFT settings (RTTMillisecond, SnapshotEntries,
// CompactionOverhead, DataDir, ReplicaID and ClusterMembers) must be set as well.
//
// Thread Safety:
//
//	Requests are handled concurrently. Serve must only be called once.
package server
