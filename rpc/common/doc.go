// Package common provides the data structures and utilities shared by the RPC client,
// server and transports: the message protocol, configuration and logging.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. One struct is used for requests
//     and responses, which fields are set depends on the MessageType. Factory functions build
//     the requests of the record store and the lock manager.
//
//   - ErrCode: Carries the kind of an error across the wire. ToErrCode classifies an error on
//     the server, FromErrCode rebuilds it on the client so that errors.Is matches the sentinels
//     of the lockable package (ErrLockConflict, ErrHardLockActive, ...) and the store codes.
//
//   - ServerConfig: Configuration of a server node: shards, RAFT parameters, Redis connection,
//     lock intervals and the principal registry. Converts to the Dragonboat configuration.
//
//   - ViperLockConfig: lockable.IConfig with the lock intervals of viper, reloaded when the watched config file changes.
//
//   - ClientConfig: Endpoints, timeout and retries of RPC clients.
//
//   - Logger: Implementation of the Dragonboat logger interface with a uniform format, used
//     by all packages of the module.
package common
