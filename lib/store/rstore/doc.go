// Package rstore implements store.IStore on top of Redis using go-redis.
//
// Every record is a JSON document under "<prefix>:rec:<id>". The set "<prefix>:records"
// holds all ids and backs List. Each shard uses its own prefix, so several shards can share
// one Redis server.
//
// Create and Update run as optimistic transactions: the record key is WATCHed, the stored
// record is read and checked, and the write is queued in MULTI/EXEC. If another client
// changes the key in between, EXEC fails and the transaction is retried against the new
// state. A second concurrent lock acquisition therefore observes the first one and fails
// its condition with RetCConditionFailed.
package rstore
