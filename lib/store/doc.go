// Package store provides a high-level interface for record storage with atomic
// conditional updates and unified error handling. It serves as an abstraction layer
// over the lower-level db.RecordDB implementations, adding write index management and
// standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: The storage collaborator of the lock manager. It offers point
//     lookup, creation, deletion, listing and the conditional Update every lock transition
//     and guarded write is built on.
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     (RetCode) and descriptive messages. IsNotFound and IsConditionFailed classify errors
//     without type assertions.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.RecordDB
//     instances.
//
// Implementations:
//
//	- Local Store (lstore): Uses a db.RecordDB instance directly and manages write indices
//	  with an atomic counter. Suitable for single-node deployments.
//	  Available in the "github.com/ValentinKolb/dRL/lib/store/lstore" package.
//
//	- Distributed Store (dstore): Built on the Dragonboat RAFT consensus library. Every
//	  write is a log entry applied by the state machine on all replicas, so conditional
//	  updates are linearizable across nodes.
//	  Available in the "github.com/ValentinKolb/dRL/lib/store/dstore" package.
//
//	- Redis Store (rstore): Keeps records in Redis. Conditional updates use an optimistic
//	  WATCH/MULTI transaction on the record key.
//	  Available in the "github.com/ValentinKolb/dRL/lib/store/rstore" package.
//
// The testing sub package (github.com/ValentinKolb/dRL/lib/store/testing) contains the
// conformance suite all implementations run.
package store
