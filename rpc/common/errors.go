package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/store"
)

// ErrCode carries the kind of an error across the wire, so a client can rebuild an error that
// errors.Is matches against the sentinels of the lockable package and the store error codes.
type ErrCode uint8

const (
	ErrCNone ErrCode = iota
	ErrCInternal
	ErrCInvalidPrincipal
	ErrCLockConflict
	ErrCHardLockActive
	ErrCNotLockedAndModified
	ErrCLockedBySomeoneElse
	ErrCLockedInAnotherSession
	ErrCStoreUnsupported
	ErrCStoreInvalid
	ErrCStoreNotFound
	ErrCStoreAlreadyExists
	ErrCStoreConditionFailed
)

// sentinels of the lockable package by code
var lockErrs = map[ErrCode]error{
	ErrCInvalidPrincipal:       lockable.ErrInvalidPrincipal,
	ErrCLockConflict:           lockable.ErrLockConflict,
	ErrCHardLockActive:         lockable.ErrHardLockActive,
	ErrCNotLockedAndModified:   lockable.ErrNotLockedAndModified,
	ErrCLockedBySomeoneElse:    lockable.ErrLockedBySomeoneElse,
	ErrCLockedInAnotherSession: lockable.ErrLockedInAnotherSession,
}

// store return codes by code
var storeCodes = map[ErrCode]store.RetCode{
	ErrCStoreUnsupported:     store.RetCUnsupportedOperation,
	ErrCStoreInvalid:         store.RetCInvalidOperation,
	ErrCStoreNotFound:        store.RetCNotFound,
	ErrCStoreAlreadyExists:   store.RetCAlreadyExists,
	ErrCStoreConditionFailed: store.RetCConditionFailed,
}

func (c ErrCode) String() string {
	switch c {
	case ErrCNone:
		return "none"
	case ErrCInternal:
		return "internal"
	case ErrCInvalidPrincipal:
		return "invalid-principal"
	case ErrCLockConflict:
		return "lock-conflict"
	case ErrCHardLockActive:
		return "hard-lock-active"
	case ErrCNotLockedAndModified:
		return "not-locked-and-modified"
	case ErrCLockedBySomeoneElse:
		return "locked-by-someone-else"
	case ErrCLockedInAnotherSession:
		return "locked-in-another-session"
	case ErrCStoreUnsupported:
		return "unsupported"
	case ErrCStoreInvalid:
		return "invalid"
	case ErrCStoreNotFound:
		return "not-found"
	case ErrCStoreAlreadyExists:
		return "already-exists"
	case ErrCStoreConditionFailed:
		return "condition-failed"
	default:
		return fmt.Sprintf("ErrCode(%d)", uint8(c))
	}
}

// MarshalJSON encodes the code by name
func (c ErrCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a code by name
func (c *ErrCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for code := ErrCNone; code <= ErrCStoreConditionFailed; code++ {
		if code.String() == s {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown error code: %s", s)
}

// ToErrCode classifies err. Lock sentinels take precedence over store codes.
func ToErrCode(err error) ErrCode {
	if err == nil {
		return ErrCNone
	}
	for code := ErrCInvalidPrincipal; code <= ErrCLockedInAnotherSession; code++ {
		if errors.Is(err, lockErrs[code]) {
			return code
		}
	}
	var se *store.Error
	if errors.As(err, &se) {
		for code, ret := range storeCodes {
			if se.Code == ret {
				return code
			}
		}
	}
	return ErrCInternal
}

// FromErrCode rebuilds an error from its code and message
func FromErrCode(code ErrCode, msg string) error {
	if sentinel, ok := lockErrs[code]; ok {
		return &RemoteError{Code: code, Msg: msg, sentinel: sentinel}
	}
	if ret, ok := storeCodes[code]; ok {
		return store.NewError(ret, msg)
	}
	return &RemoteError{Code: ErrCInternal, Msg: msg}
}

// errMessage returns the message sent for err. Store errors send their bare message,
// the client wraps it into a store.Error again.
func errMessage(code ErrCode, err error) string {
	var se *store.Error
	if _, ok := storeCodes[code]; ok && errors.As(err, &se) {
		return se.Msg
	}
	return err.Error()
}

// RemoteError is an error returned by a server. It unwraps to the matching lock sentinel.
type RemoteError struct {
	Code     ErrCode
	Msg      string
	sentinel error
}

func (e *RemoteError) Error() string {
	return e.Msg
}

func (e *RemoteError) Unwrap() error {
	return e.sentinel
}
