package internal

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Command with id and body",
			command:  Command{Type: CommandTCreate, ID: "testid", Body: []byte("body")},
			expected: 1 + 4 + 6 + 4,
		},
		{
			name:     "Delete without body",
			command:  Command{Type: CommandTDelete, ID: "testid"},
			expected: 1 + 4 + 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := tt.command.SizeBytes(); size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lock := record.NewLock(at, "alice", true)

	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "Create",
			command: Command{Type: CommandTCreate, ID: "r", Body: record.Marshal(record.New("r", map[string]string{"a": "b"}, at))},
		},
		{
			name: "Update",
			command: Command{Type: CommandTUpdate, ID: "story-42", Body: record.MarshalUpdate(
				record.Condition{Lock: &record.LockState{}}, record.Assignment{Lock: &lock})},
		},
		{
			name:    "Delete",
			command: Command{Type: CommandTDelete, ID: "story-42"},
		},
		{
			name:    "Empty id",
			command: Command{Type: CommandTDelete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()
			if len(data) != tt.command.SizeBytes() {
				t.Fatalf("Serialize() produced %d bytes, SizeBytes() = %d", len(data), tt.command.SizeBytes())
			}

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.command) {
				t.Errorf("Deserialize() = %#v, want %#v", got, tt.command)
			}
		})
	}
}

// TestDeserializeCopiesBody checks that the command does not alias the input buffer
func TestDeserializeCopiesBody(t *testing.T) {
	data := (&Command{Type: CommandTCreate, ID: "r", Body: []byte("payload")}).Serialize()

	var cmd Command
	if err := cmd.Deserialize(data); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	if !bytes.Equal(cmd.Body, []byte("payload")) {
		t.Errorf("Body changed after the input buffer was overwritten: %q", cmd.Body)
	}
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "header only partially", data: []byte{0, 0, 0}},
		{name: "id too short", data: []byte{0, 0, 0, 0, 10, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			if err := cmd.Deserialize(tt.data); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestToDBFeature(t *testing.T) {
	if f, err := CommandTUpdate.ToDBFeature(); err != nil || f&db.FeatureConditionalUpdate == 0 {
		t.Errorf("Update must require conditional update support, got %v %v", f, err)
	}
	if _, err := CommandType(99).ToDBFeature(); err == nil {
		t.Errorf("expected an error for an unknown command type")
	}
}
