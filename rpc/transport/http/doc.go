// Package http implements the RPC transport over HTTP.
//
// The server routes POST /{shardId} to the registered handler, the request and response
// bodies are the serialized messages. GET /metrics serves all metrics registered with
// VictoriaMetrics in the prometheus text format (lock events, rpc request counters and
// the process metrics).
//
// The client sends requests round-robin over all configured endpoints and retries failed
// requests on the next endpoint. It is safe for concurrent use.
package http
