package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/serializer"
	"github.com/ValentinKolb/dRL/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
//
// Conditional updates are not available remotely, Update always fails with
// store.RetCUnsupportedOperation. Records are written through the lock manager client.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Create(rec record.Record) error {
	_, err := i.invoke(common.NewCreateRequest(record.Marshal(rec)))
	return err
}

func (i *rpcStore) Get(id string) (record.Record, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(id))
	if err != nil || !resp.Ok {
		return record.Record{}, false, err
	}
	rec, err := record.Unmarshal(resp.Value)
	if err != nil {
		return record.Record{}, false, fmt.Errorf("rpc client: decode record %q: %w", id, err)
	}
	return rec, true, nil
}

func (i *rpcStore) Update(id string, _ record.Condition, _ record.Assignment) (record.Record, error) {
	return record.Record{}, store.NewError(store.RetCUnsupportedOperation, fmt.Sprintf("record %q: remote updates go through the lock manager", id))
}

func (i *rpcStore) Delete(id string) error {
	_, err := i.invoke(common.NewDeleteRequest(id))
	return err
}

func (i *rpcStore) List() ([]record.Record, error) {
	return listRecords(&i.rpcClientAdapter, common.MsgTRecList)
}

func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := i.invoke(common.NewDBInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("rpc client: decode db info: %w", err)
	}
	return info, nil
}

// listRecords requests and decodes one of the record lists
func listRecords(a *rpcClientAdapter, msgType common.MessageType) ([]record.Record, error) {
	resp, err := a.invoke(common.NewListRequest(msgType))
	if err != nil {
		return nil, err
	}
	recs, err := record.UnmarshalList(resp.Value)
	if err != nil {
		return nil, fmt.Errorf("rpc client: decode %s: %w", msgType, err)
	}
	return recs, nil
}
