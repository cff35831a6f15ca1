package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dRL/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

/*
	Format: MsgType (1 byte) | flags (1 byte) | optional fields in flag order

	ID, Principal, Value, Meta:  length (4 bytes) | data
	Hard, Ok:                    encoded by the flag only
	Err:                         ErrCode (1 byte) | length (4 bytes) | message
*/

// Bit flags to indicate which optional fields are present
const (
	hasID        byte = 1 << 0
	hasPrincipal byte = 1 << 1
	hasHard      byte = 1 << 2
	hasValue     byte = 1 << 3
	hasOk        byte = 1 << 4
	hasErr       byte = 1 << 5
	hasMeta      byte = 1 << 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, 2, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags byte
	if msg.ID != "" {
		flags |= hasID
		result = appendBytes(result, []byte(msg.ID))
	}
	if msg.Principal != "" {
		flags |= hasPrincipal
		result = appendBytes(result, []byte(msg.Principal))
	}
	if msg.Hard {
		flags |= hasHard
	}
	if msg.Value != nil {
		flags |= hasValue
		result = appendBytes(result, msg.Value)
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Err != "" || msg.ErrCode != common.ErrCNone {
		flags |= hasErr
		result = append(result, byte(msg.ErrCode))
		result = appendBytes(result, []byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		result = appendBytes(result, msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags
	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	r := reader{data: data, pos: 2}

	if flags&hasID != 0 {
		msg.ID = string(r.bytes("id"))
	}
	if flags&hasPrincipal != 0 {
		msg.Principal = string(r.bytes("principal"))
	}
	msg.Hard = flags&hasHard != 0
	if flags&hasValue != 0 {
		msg.Value = r.copyBytes("value")
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasErr != 0 {
		msg.ErrCode = common.ErrCode(r.byte("error code"))
		msg.Err = string(r.bytes("error"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.copyBytes("meta")
	}
	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2
	if msg.ID != "" {
		size += 4 + len(msg.ID)
	}
	if msg.Principal != "" {
		size += 4 + len(msg.Principal)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Err != "" || msg.ErrCode != common.ErrCNone {
		size += 1 + 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}
	return size
}

// appendBytes appends a length prefixed byte slice
func appendBytes(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// reader reads length prefixed fields, the first error sticks
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) byte(field string) byte {
	if r.err != nil {
		return 0
	}
	if r.pos+1 > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

// bytes returns a slice of the underlying data
func (r *reader) bytes(field string) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+4 > len(r.data) {
		r.err = fmt.Errorf("data too short for %s length", field)
		return nil
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s data", field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// copyBytes returns a copy, an empty field decodes to an empty (not nil) slice
func (r *reader) copyBytes(field string) []byte {
	b := r.bytes(field)
	if r.err != nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
