package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dRL/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTCreate CommandType = iota // Insert a new record.
	CommandTUpdate                    // Conditionally update a record.
	CommandTDelete                    // Delete a record.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTCreate:
		return "Create"
	case CommandTUpdate:
		return "Update"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTCreate:
		return db.FeatureInsert, nil
	case CommandTUpdate:
		return db.FeatureUpdate | db.FeatureConditionalUpdate, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log).
// Body holds the record (Create) or the encoded condition and assignment (Update) in the
// binary format of the record package.
type Command struct {
	Type CommandType
	ID   string
	Body []byte
}

// headerSize is Type + IDLen
const headerSize = 1 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command Command) SizeBytes() int {
	return headerSize + len(command.ID) + len(command.Body)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for id length (big endian),
// N bytes for id data,
// M bytes for the body (optional)
func (command Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:headerSize], uint32(len(command.ID)))
	n := copy(result[headerSize:], command.ID)
	copy(result[headerSize+n:], command.Body)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	idLen := int(binary.BigEndian.Uint32(data[1:headerSize]))
	if len(data) < headerSize+idLen {
		return fmt.Errorf("data too short for id of length %d", idLen)
	}
	command.ID = string(data[headerSize : headerSize+idLen])

	// the raft entry buffer is reused by dragonboat, the body must be copied
	if rest := data[headerSize+idLen:]; len(rest) > 0 {
		command.Body = make([]byte, len(rest))
		copy(command.Body, rest)
	} else {
		command.Body = nil
	}

	return nil
}
