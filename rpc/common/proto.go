package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	ID        string `json:"id,omitempty"`        // Used for: all record and lock operations on a single record
	Principal string `json:"principal,omitempty"` // Used for: Acquire, ReleaseFor, Inspect
	Hard      bool   `json:"hard,omitempty"`      // Used for: Acquire
	Value     []byte `json:"value,omitempty"`     // Used for: Create, Save (request), Get, List, lock operations (response)

	// Response only fields
	Ok      bool    `json:"ok,omitempty"`       // Used for: Get responses
	ErrCode ErrCode `json:"err_code,omitempty"` // Kind of the error, see ErrCode
	Err     string  `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Inspect and GetDBInfo responses (json)
}

// SetError stores err in the message. A nil error leaves the message untouched.
func (m *Message) SetError(err error) *Message {
	if err != nil {
		m.ErrCode = ToErrCode(err)
		m.Err = errMessage(m.ErrCode, err)
	}
	return m
}

// AsError rebuilds the error carried by a response, nil if there is none.
func (m *Message) AsError() error {
	if m.Err == "" && m.ErrCode == ErrCNone {
		return nil
	}
	return FromErrCode(m.ErrCode, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCreateRequest creates a new Create request, rec is the encoded record
func NewCreateRequest(rec []byte) *Message {
	return &Message{
		MsgType: MsgTRecCreate,
		Value:   rec,
	}
}

// NewGetRequest creates a new Get request
func NewGetRequest(id string) *Message {
	return &Message{
		MsgType: MsgTRecGet,
		ID:      id,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(rec []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTRecGet,
		Ok:      ok,
		Value:   rec,
	}
	return msg.SetError(err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(id string) *Message {
	return &Message{
		MsgType: MsgTRecDelete,
		ID:      id,
	}
}

// NewListRequest creates a new List request. The type selects all, locked or unlocked records.
func NewListRequest(msgType MessageType) *Message {
	return &Message{
		MsgType: msgType,
	}
}

// NewListResponse creates a response to a List, Locked or Unlocked request
func NewListResponse(msgType MessageType, recs []byte, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Value:   recs,
	}
	return msg.SetError(err)
}

// NewDBInfoRequest creates a new GetDBInfo request
func NewDBInfoRequest() *Message {
	return &Message{
		MsgType: MsgTRecInfo,
	}
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(id, principal string, hard bool) *Message {
	return &Message{
		MsgType:   MsgTLCKAcquire,
		ID:        id,
		Principal: principal,
		Hard:      hard,
	}
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(id string) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		ID:      id,
	}
}

// NewReleaseForRequest creates a new ReleaseFor request
func NewReleaseForRequest(id, principal string) *Message {
	return &Message{
		MsgType:   MsgTLCKReleaseFor,
		ID:        id,
		Principal: principal,
	}
}

// NewSaveRequest creates a new Save request, fields are the encoded fields
func NewSaveRequest(id string, fields []byte) *Message {
	return &Message{
		MsgType: MsgTLCKSave,
		ID:      id,
		Value:   fields,
	}
}

// NewInspectRequest creates a new Inspect request
func NewInspectRequest(id, principal string) *Message {
	return &Message{
		MsgType:   MsgTLCKInspect,
		ID:        id,
		Principal: principal,
	}
}

// NewRecordResponse creates a response carrying the record after an operation.
// rec may be nil if the operation failed before the record was read.
func NewRecordResponse(msgType MessageType, rec []byte, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Value:   rec,
	}
	return msg.SetError(err)
}

// NewResponse creates a response without payload
func NewResponse(msgType MessageType, err error) *Message {
	msg := &Message{
		MsgType: msgType,
	}
	return msg.SetError(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		ErrCode: ErrCInternal,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTRecCreate:     "create",
	MsgTRecGet:        "get",
	MsgTRecDelete:     "delete",
	MsgTRecList:       "list",
	MsgTRecInfo:       "info",
	MsgTLCKAcquire:    "acquire",
	MsgTLCKRelease:    "release",
	MsgTLCKReleaseFor: "releaseFor",
	MsgTLCKSave:       "save",
	MsgTLCKInspect:    "inspect",
	MsgTLCKLocked:     "locked",
	MsgTLCKUnlocked:   "unlocked",
	MsgTCustom:        "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for msgType, name := range msgTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations (read, create and delete only)

	MsgTRecCreate // Create a record
	MsgTRecGet    // Get a record by id
	MsgTRecDelete // Delete a record
	MsgTRecList   // List all records
	MsgTRecInfo   // Get database info

	// ILockManager operations

	MsgTLCKAcquire    // Acquire a lock
	MsgTLCKRelease    // Release a lock unconditionally
	MsgTLCKReleaseFor // Release a lock held by a principal
	MsgTLCKSave       // Guarded write of the record fields
	MsgTLCKInspect    // Lock info of a record
	MsgTLCKLocked     // List locked records
	MsgTLCKUnlocked   // List unlocked records

	// Custom operations

	MsgTCustom // Custom operation type
)
