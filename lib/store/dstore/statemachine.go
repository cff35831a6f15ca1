package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// RecordStateMachine is a state machine implementation for Dragonboat RAFT
type RecordStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.RecordDB // the actual dataStorage
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &RecordStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding RecordDB method.
func (fsm *RecordStateMachine) Lookup(itf interface{}) (interface{}, error) {

	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		rec, ok := fsm.database.Get(q.ID)
		if !ok {
			return (*record.Record)(nil), nil
		}
		return &rec, nil
	case internal.QueryTList:
		if !fsm.database.SupportsFeature(db.FeatureRange) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "List operation is not supported")
		}
		recs := []record.Record{}
		fsm.database.Range(func(rec record.Record) bool {
			recs = append(recs, rec)
			return true
		})
		return recs, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// result builds the state machine result for a return code and a message or payload
func result(code store.RetCode, data []byte) sm.Result {
	return sm.Result{Value: uint64(code), Data: data}
}

func errResult(code store.RetCode, format string, args ...any) sm.Result {
	return result(code, []byte(fmt.Sprintf(format, args...)))
}

// apply executes one command against the database at the given raft index
func (fsm *RecordStateMachine) apply(cmd internal.Command, index uint64) sm.Result {
	switch cmd.Type {
	case internal.CommandTCreate:
		rec, err := record.Unmarshal(cmd.Body)
		if err != nil {
			return errResult(store.RetCInvalidOperation, "invalid record: %v", err)
		}
		if rec.ID != cmd.ID {
			return errResult(store.RetCInvalidOperation, "record id %q does not match command id %q", rec.ID, cmd.ID)
		}
		if err := store.ValidateCreate(rec); err != nil {
			return errResult(store.RetCInvalidOperation, "%s", err.(*store.Error).Msg)
		}
		if !fsm.database.Insert(rec, index) {
			return errResult(store.RetCAlreadyExists, "record %q already exists", cmd.ID)
		}
		return result(store.RetCSuccess, cmd.Body)

	case internal.CommandTUpdate:
		cond, assign, err := record.UnmarshalUpdate(cmd.Body)
		if err != nil {
			return errResult(store.RetCInvalidOperation, "invalid update: %v", err)
		}
		if err := store.ValidateUpdate(cmd.ID, assign); err != nil {
			return errResult(store.RetCInvalidOperation, "%s", err.(*store.Error).Msg)
		}
		rec, res := fsm.database.Update(cmd.ID, cond, assign, index)
		if err := store.ResultToError(cmd.ID, res); err != nil {
			se := err.(*store.Error)
			return result(se.Code, []byte(se.Msg))
		}
		return result(store.RetCSuccess, record.Marshal(rec))

	case internal.CommandTDelete:
		if !fsm.database.Delete(cmd.ID, index) {
			return errResult(store.RetCNotFound, "record %q not found", cmd.ID)
		}
		return result(store.RetCSuccess, nil)

	default:
		return errResult(store.RetCInvalidOperation, "unknown Command operation: %s", cmd.Type)
	}
}

// Update handles write commands on the RecordDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *RecordStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = errResult(store.RetCInvalidOperation, "empty command ignored")
			continue
		}

		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = errResult(store.RetCInternalError, "failed to deserialize command: %v", err)
			continue
		}

		feat, err := cmd.Type.ToDBFeature()
		if err != nil {
			entries[idx].Result = errResult(store.RetCInvalidOperation, "unknown Command operation: %s", cmd.Type)
			continue
		}
		if !fsm.database.SupportsFeature(feat) {
			entries[idx].Result = errResult(store.RetCUnsupportedOperation, "%s operation is not supported", cmd.Type)
			continue
		}

		entries[idx].Result = fsm.apply(cmd, e.Index)
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *RecordStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *RecordStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used RecordDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot restores the database from a snapshot
func (fsm *RecordStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used RecordDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *RecordStateMachine) Close() error {
	return fsm.database.Close()
}
