package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/fsnotify/fsnotify"
	"github.com/lni/dragonboat/v4/config"
	"github.com/spf13/viper"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShardType selects the store backing a shard
type ServerShardType string

const (
	ShardTypeLocal ServerShardType = "lstore" // in-process store (maple engine)
	ShardTypeRaft  ServerShardType = "dstore" // replicated store (dragonboat RAFT over maple)
	ShardTypeRedis ServerShardType = "rstore" // store in a Redis server
)

// ParseShardType parses the name of a shard type
func ParseShardType(s string) (ServerShardType, error) {
	switch t := ServerShardType(strings.TrimSpace(s)); t {
	case ShardTypeLocal, ShardTypeRaft, ShardTypeRedis:
		return t, nil
	default:
		return "", fmt.Errorf("invalid shard type: %s (expected one of: lstore, dstore, rstore)", s)
	}
}

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type is the store backing the shard
	Type ServerShardType
}

// ServerConfig holds all configuration parameters of the server.
type ServerConfig struct {
	// shards served by this node
	Shards []ServerShard

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// remote store parameters (raft and redis)
	TimeoutSecond int64

	// Redis parameters
	RedisURL string

	// Lock settings
	ExpirationSecond int64
	WarningSecond    int64
	PrincipalsFile   string

	// transport settings
	Endpoint string
	// tcp and unix only, concurrent requests handled per connection
	WorkersPerConn int
	// tcp only, disables Nagle's algorithm
	TCPNoDelay bool

	// Logging configuration
	LogLevel string
}

// HasRaftShard checks if the configuration contains any shards replicated with RAFT
func (c *ServerConfig) HasRaftShard() bool {
	return c.hasShardType(ShardTypeRaft)
}

// HasRedisShard checks if the configuration contains any shards stored in Redis
func (c *ServerConfig) HasRedisShard() bool {
	return c.hasShardType(ShardTypeRedis)
}

func (c *ServerConfig) hasShardType(t ServerShardType) bool {
	for _, shard := range c.Shards {
		if shard.Type == t {
			return true
		}
	}
	return false
}

// Timeout returns the timeout of remote stores
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// LockConfig returns the static lock intervals of the configuration
func (c *ServerConfig) LockConfig() lockable.StaticConfig {
	return lockable.StaticConfig{
		Expiration: time.Duration(c.ExpirationSecond) * time.Second,
		Warning:    time.Duration(c.WarningSecond) * time.Second,
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.WorkersPerConn > 0 {
		addField("Workers/Connection", strconv.Itoa(c.WorkersPerConn))
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Locks
	lc := c.LockConfig()
	addSection("Locks")
	addField("Expiration", lc.ExpirationInterval().String())
	addField("Warning", lc.WarningInterval().String())
	if c.PrincipalsFile != "" {
		addField("Principals", c.PrincipalsFile)
	} else {
		addField("Principals", "any")
	}

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasRedisShard() {
		addSection("Redis")
		addField("URL", redactURL(c.RedisURL))
	}

	if c.HasRaftShard() {
		// Node Identity
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		// RAFT parameters
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Check Quorum", fmt.Sprintf("%t", true))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		// Storage
		addSection("Storage")
		addField("Data Directory", c.DataDir)

		addSection("Cluster")
		sb.WriteString("  Initial Cluster Members:\n")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// redactURL hides the password of a connection url
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	userinfo := raw[scheme+3 : at]
	if i := strings.Index(userinfo, ":"); i >= 0 {
		return raw[:scheme+3] + userinfo[:i] + ":***" + raw[at:]
	}
	return raw
}

// --------------------------------------------------------------------------
// Lock configuration backed by viper
// --------------------------------------------------------------------------

// ViperLockConfig implements lockable.IConfig on top of a viper instance. The
// intervals are read into atomics on creation and on every Reload, lock operations
// never touch viper. With Watch, a changed config file is visible to the next lock
// operation after the file watcher has processed the change event.
// Values are seconds, zero or negative values fall back to the defaults.
type ViperLockConfig struct {
	v                 *viper.Viper
	expirationSeconds atomic.Int64
	warningSeconds    atomic.Int64
}

// Keys of the lock intervals read by ViperLockConfig
const (
	KeyTimeUntilExpiration = "time-until-expiration"
	KeyTimeUntilWarning    = "time-until-warning"
)

// NewViperLockConfig reads KeyTimeUntilExpiration and KeyTimeUntilWarning of v (the global viper if nil)
func NewViperLockConfig(v *viper.Viper) *ViperLockConfig {
	if v == nil {
		v = viper.GetViper()
	}
	c := &ViperLockConfig{v: v}
	c.Reload()
	return c
}

// Reload reads both intervals from viper again. It must not run concurrently with writes to viper.
func (c *ViperLockConfig) Reload() {
	c.expirationSeconds.Store(c.v.GetInt64(KeyTimeUntilExpiration))
	c.warningSeconds.Store(c.v.GetInt64(KeyTimeUntilWarning))
}

// Watch starts watching the config file of viper. After viper has re-read the file
// the intervals are reloaded and onChange (may be nil) is called, both on the watcher goroutine.
func (c *ViperLockConfig) Watch(onChange func(e fsnotify.Event)) {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		c.Reload()
		if onChange != nil {
			onChange(e)
		}
	})
	c.v.WatchConfig()
}

func (c *ViperLockConfig) ExpirationInterval() time.Duration {
	return lockable.StaticConfig{Expiration: time.Duration(c.expirationSeconds.Load()) * time.Second}.ExpirationInterval()
}

func (c *ViperLockConfig) WarningInterval() time.Duration {
	return lockable.StaticConfig{Warning: time.Duration(c.warningSeconds.Load()) * time.Second}.WarningInterval()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
	// tcp and unix only, at least one connection is opened per endpoint
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	if c.ConnectionsPerEndpoint > 1 {
		addField("Connections/Endpoint", strconv.Itoa(c.ConnectionsPerEndpoint))
	}

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
