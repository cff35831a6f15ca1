package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.RecordDB

// IStore is the generic interface for interacting with a record store.
// All errors returned by implementations are of type *Error.
type IStore interface {
	// Create stores a new record. Fails with RetCAlreadyExists if the id is taken and with
	// RetCInvalidOperation if the record violates the lock invariants.
	Create(rec record.Record) (err error)
	// Get returns the record with the given id. The boolean return value indicates whether the record was found.
	Get(id string) (rec record.Record, loaded bool, err error)
	// Update atomically checks cond against the stored record and writes assign.
	// Returns the stored record after the update.
	// Fails with RetCNotFound if the record does not exist and with RetCConditionFailed if the
	// stored record does not satisfy cond, nothing is written in both cases.
	Update(id string, cond record.Condition, assign record.Assignment) (rec record.Record, err error)
	// Delete removes a record. Fails with RetCNotFound if the record does not exist.
	Delete(id string) (err error)
	// List returns all records of the store in no particular order.
	List() (recs []record.Record, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is makes errors.Is match any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Code returns the RetCode of err, RetCSuccess for nil and RetCInternalError for errors
// that are not of type *Error.
func Code(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool {
	return err != nil && Code(err) == RetCNotFound
}

// IsConditionFailed reports whether err signals a failed update condition.
func IsConditionFailed(err error) bool {
	return err != nil && Code(err) == RetCConditionFailed
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: The record does not exist.
	RetCAlreadyExists                       // 5: A record with the same id exists.
	RetCConditionFailed                     // 6: The stored record did not satisfy the update condition.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCAlreadyExists:
		return "AlreadyExists"
	case RetCConditionFailed:
		return "ConditionFailed"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Shared validation
// --------------------------------------------------------------------------

// ValidateCreate checks a record before it is created. Used by all implementations.
func ValidateCreate(rec record.Record) error {
	if err := rec.Validate(); err != nil {
		return NewError(RetCInvalidOperation, err.Error())
	}
	return nil
}

// ValidateUpdate checks the arguments of an update before it is executed. Used by all implementations.
func ValidateUpdate(id string, assign record.Assignment) error {
	if id == "" {
		return NewError(RetCInvalidOperation, "empty record id")
	}
	if assign.IsEmpty() {
		return NewError(RetCInvalidOperation, "empty assignment")
	}
	if err := assign.Validate(); err != nil {
		return NewError(RetCInvalidOperation, err.Error())
	}
	return nil
}

// ResultToError maps the outcome of a db.RecordDB update to a store error (nil when applied).
func ResultToError(id string, res db.UpdateResult) error {
	switch res {
	case db.UpdateApplied:
		return nil
	case db.UpdateNotFound:
		return NewError(RetCNotFound, fmt.Sprintf("record %q not found", id))
	case db.UpdateConditionFailed:
		return NewError(RetCConditionFailed, fmt.Sprintf("record %q: lock condition failed", id))
	default:
		return NewError(RetCInternalError, fmt.Sprintf("record %q: unknown update result %d", id, res))
	}
}
