// Package tcp implements the RPC transport over TCP sockets on top of the base package.
// The endpoint is a host:port address.
//
// The server uses 512 KB read buffers and enables keep-alive on every connection,
// Nagle's algorithm is disabled if ServerConfig.TCPNoDelay is set. Client connections
// always disable it.
package tcp
