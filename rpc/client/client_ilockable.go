package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/serializer"
	"github.com/ValentinKolb/dRL/rpc/transport"
)

// NewRPCLockMgr creates a new RPC lockable.ILockManager
// The function takes a shard ID, a config, a transport and a serializer as parameters
//
// The server runs every operation on the record as currently stored and answers with the
// record afterwards, which is mirrored into the handle passed by the caller.
func NewRPCLockMgr(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (lockable.ILockManager, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	l := rpcLockMgr{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	return &l, nil
}

type rpcLockMgr struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockable package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcLockMgr) Acquire(rec *record.Record, p record.Principal, hard bool) error {
	if rec == nil {
		return errNilRecord
	}
	return i.apply(rec, common.NewAcquireRequest(rec.ID, string(p), hard), false)
}

func (i *rpcLockMgr) Release(rec *record.Record) error {
	if rec == nil {
		return errNilRecord
	}
	return i.apply(rec, common.NewReleaseRequest(rec.ID), false)
}

func (i *rpcLockMgr) ReleaseFor(rec *record.Record, p record.Principal) error {
	if rec == nil {
		return errNilRecord
	}
	return i.apply(rec, common.NewReleaseForRequest(rec.ID, string(p)), false)
}

func (i *rpcLockMgr) Save(rec *record.Record, fields map[string]string) error {
	if rec == nil {
		return errNilRecord
	}
	if fields == nil {
		fields = rec.Fields
	}
	return i.apply(rec, common.NewSaveRequest(rec.ID, record.MarshalFields(fields)), true)
}

func (i *rpcLockMgr) Inspect(rec *record.Record, p record.Principal) (lockable.Info, error) {
	if rec == nil {
		return lockable.Info{}, errNilRecord
	}
	resp, err := i.invoke(common.NewInspectRequest(rec.ID, string(p)))
	if resp != nil {
		if mirrorErr := mirror(rec, resp, false); mirrorErr != nil {
			return lockable.Info{}, mirrorErr
		}
	}
	if err != nil {
		return lockable.Info{}, err
	}
	var info lockable.Info
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return lockable.Info{}, fmt.Errorf("rpc client: decode lock info: %w", err)
	}
	return info, nil
}

func (i *rpcLockMgr) Locked() ([]record.Record, error) {
	return listRecords(&i.rpcClientAdapter, common.MsgTLCKLocked)
}

func (i *rpcLockMgr) Unlocked() ([]record.Record, error) {
	return listRecords(&i.rpcClientAdapter, common.MsgTLCKUnlocked)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

var errNilRecord = fmt.Errorf("rpc client: nil record handle")

// apply sends a lock operation and mirrors the returned record into the handle,
// also when the operation itself failed.
func (i *rpcLockMgr) apply(rec *record.Record, req *common.Message, withFields bool) error {
	resp, err := i.invoke(req)
	if resp != nil {
		if mirrorErr := mirror(rec, resp, withFields && err == nil); mirrorErr != nil {
			return mirrorErr
		}
	}
	return err
}

// mirror copies the lock fields and the modification time of the returned record into rec.
// The fields are only copied after a save.
func mirror(rec *record.Record, resp *common.Message, withFields bool) error {
	if len(resp.Value) == 0 {
		return nil
	}
	stored, err := record.Unmarshal(resp.Value)
	if err != nil {
		return fmt.Errorf("rpc client: decode record %q: %w", rec.ID, err)
	}
	rec.Lock = stored.Lock
	rec.ModifiedAt = stored.ModifiedAt
	if withFields {
		rec.Fields = stored.Fields
	}
	return nil
}
