// Package cmd implements the command-line interface of dRL.
// It provides a hierarchical command structure for running the server and for talking to
// it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: starts a dRL server with a set of shards (lstore, dstore, rstore)
//   - records: record operations (create, get, delete, list, info)
//   - lock: lock operations (acquire, release, release-for, save, status, locked, unlocked)
//     and a load generator (perf)
//   - util: shared utilities for command-line processing and configuration (internal use)
//
// See drl -help for a list of all commands.
package cmd
