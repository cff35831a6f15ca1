// Package transport defines the interfaces for RPC communication between clients and servers.
// A transport only moves opaque byte slices addressed to a shard, serialization is done by
// the serializer package.
//
// Key Components:
//
//   - IRPCClientTransport: client side, handles connections and sends requests.
//
//   - IRPCServerTransport: server side, receives requests and passes them to the registered
//     ServerHandleFunc together with the shard id.
//
// Implementations: http (default of the drl binary), tcp and unix. The socket transports
// share their framing and connection handling in the base subpackage.
package transport
