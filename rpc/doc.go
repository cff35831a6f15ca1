// Package rpc is the communication layer between dRL clients and servers.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, error codes, server and client configuration and
//     logger setup.
//
//   - transport: the network layer. The only implementation is HTTP, which also exposes
//     the server metrics.
//
//   - serializer: conversion of messages to bytes (binary, JSON, gob).
//
//   - client: store.IStore and lockable.ILockManager implementations talking to a server.
//
//   - server: shard management and the adapters executing requests against the stores.
package rpc
