package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dRL/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Acquire request
		{
			MsgType:   common.MsgTLCKAcquire,
			ID:        "rec-1",
			Principal: "alice",
			Hard:      true,
		},

		// Get response
		{
			MsgType: common.MsgTRecGet,
			Value:   []byte("encoded record"),
			Ok:      true,
		},

		// Error response
		{
			MsgType: common.MsgTLCKReleaseFor,
			ErrCode: common.ErrCLockConflict,
			Err:     "lockable: lock conflict",
		},

		// Message with all fields filled
		{
			MsgType:   common.MsgTLCKInspect,
			ID:        "rec-2",
			Principal: "bob",
			Hard:      true,
			Value:     []byte("encoded record"),
			Ok:        true,
			ErrCode:   common.ErrCInternal,
			Err:       "something",
			Meta:      []byte(`{"status":1}`),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, msg, result)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage tests that a reused message carries nothing over
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTRecDelete, ID: "x"})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			reused := testMessages()[4]
			if err := serializer.Deserialize(data, &reused); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			want := common.Message{MsgType: common.MsgTRecDelete, ID: "x"}
			if !reflect.DeepEqual(want, reused) {
				t.Errorf("stale fields after deserialize: %+v", reused)
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

// TestBinaryEmptySlices tests that the binary serializer keeps empty but non-nil byte fields
func TestBinaryEmptySlices(t *testing.T) {
	serializer := NewBinarySerializer()

	msg := common.Message{MsgType: common.MsgTLCKSave, ID: "r", Value: []byte{}, Meta: []byte{}}
	data, err := serializer.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if result.Value == nil || len(result.Value) != 0 || result.Meta == nil || len(result.Meta) != 0 {
		t.Errorf("empty slices not preserved: %+v", result)
	}

	// decoded slices must not alias the input
	msg.Value = []byte("abc")
	data, _ = serializer.Serialize(msg)
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	if !bytes.Equal(result.Value, []byte("abc")) {
		t.Errorf("value aliases the input buffer: %q", result.Value)
	}
}

// TestBinaryErrorCodeWithoutMessage tests that an error code survives without a message
func TestBinaryErrorCodeWithoutMessage(t *testing.T) {
	serializer := NewBinarySerializer()
	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTError, ErrCode: common.ErrCInternal})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if result.ErrCode != common.ErrCInternal {
		t.Errorf("error code lost: %+v", result)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{"Empty data", []byte{}, true},
		{"Too short header", []byte{1}, true},
		{"Valid header only", []byte{1, 0}, false},
		{"Flags only", []byte{1, hasHard | hasOk}, false},
		{"Invalid length for id", []byte{1, hasID, 0, 0, 0, 5, 'a', 'b', 'c'}, true},
		{"Invalid length for value", []byte{1, hasValue, 0, 0, 0, 10}, true},
		{"Missing error code", []byte{1, hasErr}, true},
		{"Truncated length", []byte{1, hasPrincipal, 0, 0}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
