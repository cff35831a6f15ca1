package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/rpc/common"
)

// NewLockManagerServerAdapter creates an adapter for the lock operations. A lockable.Manager
// with the given options is created for the store of the shard. Record operations are
// passed on to a record adapter.
func NewLockManagerServerAdapter(opts ...lockable.Option) IRPCServerAdapter {
	return &lockServerAdapter{
		opts:    opts,
		records: NewRecordServerAdapter(),
	}
}

type lockServerAdapter struct {
	opts    []lockable.Option
	records IRPCServerAdapter
}

func (adapter *lockServerAdapter) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	locks := lockable.NewLockManager(s, adapter.opts...)
	p := record.Principal(req.Principal)

	switch req.MsgType {
	case common.MsgTLCKLocked, common.MsgTLCKUnlocked:
		query := locks.Locked
		if req.MsgType == common.MsgTLCKUnlocked {
			query = locks.Unlocked
		}
		recs, err := query()
		if err != nil {
			return common.NewListResponse(req.MsgType, nil, err)
		}
		return common.NewListResponse(req.MsgType, record.MarshalList(recs), nil)

	case common.MsgTLCKAcquire, common.MsgTLCKRelease, common.MsgTLCKReleaseFor, common.MsgTLCKSave, common.MsgTLCKInspect:
		// every lock operation runs on a fresh handle, the client mirrors the returned record
		rec, ok, err := s.Get(req.ID)
		if err == nil && !ok {
			err = store.NewError(store.RetCNotFound, fmt.Sprintf("record %q not found", req.ID))
		}
		if err != nil {
			return common.NewRecordResponse(req.MsgType, nil, err)
		}

		var meta []byte
		switch req.MsgType {
		case common.MsgTLCKAcquire:
			err = locks.Acquire(&rec, p, req.Hard)
		case common.MsgTLCKRelease:
			err = locks.Release(&rec)
		case common.MsgTLCKReleaseFor:
			err = locks.ReleaseFor(&rec, p)
		case common.MsgTLCKSave:
			var fields map[string]string
			if len(req.Value) > 0 {
				if fields, err = record.UnmarshalFields(req.Value); err != nil {
					err = store.NewError(store.RetCInvalidOperation, err.Error())
					break
				}
			}
			if fields == nil {
				fields = map[string]string{}
			}
			err = locks.Save(&rec, fields)
		case common.MsgTLCKInspect:
			var info lockable.Info
			if info, err = locks.Inspect(&rec, p); err == nil {
				meta, err = json.Marshal(info)
			}
		}

		resp := common.NewRecordResponse(req.MsgType, record.Marshal(rec), err)
		resp.Meta = meta
		return resp

	default:
		return adapter.records.Handle(req, s)
	}
}
