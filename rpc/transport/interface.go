package transport

import (
	"github.com/ValentinKolb/dRL/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc handles one encoded request for a shard and returns the encoded response.
// It never fails, errors are encoded into the response.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport accepts requests from the network and hands them to a ServerHandleFunc
type IRPCServerTransport interface {
	// RegisterHandler sets the handler called for every request. Must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen serves on config.Endpoint and blocks until the transport fails
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport sends encoded requests to one of the configured endpoints
type IRPCClientTransport interface {
	// Connect prepares the transport for the endpoints of config
	Connect(config common.ClientConfig) error
	// Send delivers a request for a shard and returns the raw response.
	// Implementations may retry on other endpoints as configured.
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close releases the resources of the transport
	Close() error
}
