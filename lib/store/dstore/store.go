package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed store.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes a Command via SyncPropose and returns the payload of the result.
// It returns a *store.Error if the command failed.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function that queries the state machine
// and attempts to convert the response into the expected type R.
//
// This function uses SyncRead by default. If linearizability is not required,
// the stale parameter can be set to true to use the faster StaleRead function.
//
// If the read operation fails due to a system busy error, the function retries up to 5 times.
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var (
			res interface{}
			err error
		)

		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var se *store.Error
			if errors.As(err, &se) {
				return zero, se
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Create(rec record.Record) error {
	// validated here as well so that invalid records never reach the raft log
	if err := store.ValidateCreate(rec); err != nil {
		return err
	}
	_, err := s.write(internal.Command{
		Type: internal.CommandTCreate,
		ID:   rec.ID,
		Body: record.Marshal(rec),
	})
	return err
}

func (s *storeImpl) Get(id string) (record.Record, bool, error) {
	res, err := read[*record.Record](s, internal.Query{
		Type: internal.QueryTGet,
		ID:   id,
	}, false)
	if err != nil || res == nil {
		return record.Record{}, false, err
	}
	return *res, true, nil
}

func (s *storeImpl) Update(id string, cond record.Condition, assign record.Assignment) (record.Record, error) {
	if err := store.ValidateUpdate(id, assign); err != nil {
		return record.Record{}, err
	}
	data, err := s.write(internal.Command{
		Type: internal.CommandTUpdate,
		ID:   id,
		Body: record.MarshalUpdate(cond, assign),
	})
	if err != nil {
		return record.Record{}, err
	}
	rec, err := record.Unmarshal(data)
	if err != nil {
		return record.Record{}, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid update result: %v", err))
	}
	return rec, nil
}

func (s *storeImpl) Delete(id string) error {
	_, err := s.write(internal.Command{
		Type: internal.CommandTDelete,
		ID:   id,
	})
	return err
}

func (s *storeImpl) List() ([]record.Record, error) {
	return read[[]record.Record](s, internal.Query{
		Type: internal.QueryTList,
	}, false)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
