package serializer

import "github.com/ValentinKolb/dRL/rpc/common"

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into msg. All fields of msg are overwritten.
	Deserialize(b []byte, msg *common.Message) error
}
