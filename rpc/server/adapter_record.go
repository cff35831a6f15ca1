package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/rpc/common"
)

// NewRecordServerAdapter creates an adapter for the record operations of a store:
// create, get, delete, list and database info. Updates are only possible through the lock
// manager adapter, so remote writes always pass the write guard.
func NewRecordServerAdapter() IRPCServerAdapter {
	return &recordServerAdapter{}
}

type recordServerAdapter struct{}

func (adapter *recordServerAdapter) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTRecCreate:
		rec, err := record.Unmarshal(req.Value)
		if err != nil {
			return common.NewResponse(req.MsgType, store.NewError(store.RetCInvalidOperation, err.Error()))
		}
		return common.NewResponse(req.MsgType, s.Create(rec))
	case common.MsgTRecGet:
		rec, ok, err := s.Get(req.ID)
		if err != nil || !ok {
			return common.NewGetResponse(nil, false, err)
		}
		return common.NewGetResponse(record.Marshal(rec), true, nil)
	case common.MsgTRecDelete:
		return common.NewResponse(req.MsgType, s.Delete(req.ID))
	case common.MsgTRecList:
		recs, err := s.List()
		if err != nil {
			return common.NewListResponse(req.MsgType, nil, err)
		}
		return common.NewListResponse(req.MsgType, record.MarshalList(recs), nil)
	case common.MsgTRecInfo:
		info, err := s.GetDBInfo()
		if err != nil {
			return common.NewResponse(req.MsgType, err)
		}
		meta, err := json.Marshal(info)
		if err != nil {
			return common.NewErrorResponse(fmt.Sprintf("encode db info: %v", err))
		}
		return &common.Message{MsgType: req.MsgType, Meta: meta}
	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC RecordAdapter - Unsupported message type: %s", req.MsgType))
	}
}
