package server

import (
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request against the store of a shard and returns a response.
	// Errors are reported in the response, never as a nil response.
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
