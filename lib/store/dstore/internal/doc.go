// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the wire format used to transmit operations
// between the store client and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
//   - Command System: Defines write operations (Create, Update, Delete). Commands are
//     serialized and proposed to the RAFT cluster and executed by the state machine on
//     every replica.
//
//   - Query System: Defines read operations (Get, List, GetDBInfo). Queries are executed
//     locally on the state machine and therefore do not require serialization.
//
// Command Format:
//
//	- 1 byte: Command type (Create, Update, Delete)
//	- 4 bytes: ID length (uint32, big endian)
//	- N bytes: ID
//	- M bytes: Body (Create: encoded record, Update: encoded condition and assignment,
//	  Delete: empty)
//
// Results:
//
//	The state machine answers each command with the store.RetCode in Result.Value. On
//	success Result.Data holds the encoded record after the write (Create and Update),
//	otherwise a human readable error message.
package internal
