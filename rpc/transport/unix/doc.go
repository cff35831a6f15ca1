// Package unix implements the RPC transport over Unix domain sockets on top of the base
// package, for clients on the same machine as the server. The endpoint is the path of
// the socket file, an existing file at that path is removed when the server starts.
package unix
