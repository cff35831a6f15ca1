// Package base implements the framing and connection handling shared by the socket
// transports (tcp, unix). The protocol specific parts are provided by an IClientConnector
// and an IServerConnector.
//
// Every request and response is a frame:
//
//	shardId (8 bytes) | requestID (8 bytes) | length (4 bytes) | payload
//
// Frames larger than 32 MiB are rejected.
//
// The client keeps ConnectionsPerEndpoint connections to every endpoint and picks one
// round robin per request. Requests on one connection are pipelined, a reader goroutine
// matches responses to the waiting requests by request id. Failed requests are retried
// with exponential backoff, a connection with a read error is re-established.
//
// The server handles up to WorkersPerConn requests of one connection concurrently and
// reuses read buffers through a sync.Pool. Request counters are registered with
// VictoriaMetrics under the transport name.
package base
