// Package serializer converts RPC messages (common.Message) to bytes and back.
//
// Three implementations share the IRPCSerializer interface:
//
//   - NewBinarySerializer: a compact format of type byte, flag byte and the present fields.
//     Each byte field is length prefixed, errors carry their common.ErrCode. This is the
//     default of the CLI.
//
//   - NewJSONSerializer: encoding/json, readable on the wire. Message types and error
//     codes are written by name.
//
//   - NewGOBSerializer: encoding/gob, mainly useful for comparison in the benchmarks.
//
// Record payloads (Value) are already encoded by the record package, so the serializers
// never look into them.
//
// Deserialize always resets the target message, a message can be reused for several calls.
// All implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewAcquireRequest("invoice-17", "alice", false))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(received, &resp)
package serializer
