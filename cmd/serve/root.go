package serve

import (
	"fmt"
	"strconv"
	"strings"

	cmdUtil "github.com/ValentinKolb/dRL/cmd/util"
	"github.com/ValentinKolb/dRL/lib/db/util"
	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/server"
	"github.com/ValentinKolb/dRL/rpc/transport"
	"github.com/ValentinKolb/dRL/rpc/transport/http"
	"github.com/ValentinKolb/dRL/rpc/transport/tcp"
	"github.com/ValentinKolb/dRL/rpc/transport/unix"
	"github.com/fsnotify/fsnotify"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log = logger.GetLogger("rpc")

	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the dRL server",
		Long: `Start the dRL server with the specified configuration. The configuration can be set via command line flags, a config file (--config) or environment variables. The format of the environment variables is DRL_<flag> (e.g. DRL_TIME_UNTIL_EXPIRATION=900).

The lock intervals (time-until-expiration, time-until-warning) are reloaded when the config file changes, no restart is needed.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitClientConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=lstore", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: lstore (in memory), dstore (RAFT replicated), rstore (Redis)"))

	key = "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional config file (yaml, json, toml, ...). The file is watched for changes"))

	key = common.KeyTimeUntilExpiration
	ServeCmd.PersistentFlags().Int64(key, 600, cmdUtil.WrapString("Lifetime of a lock in seconds. A lock is treated as released once it is older"))

	key = common.KeyTimeUntilWarning
	ServeCmd.PersistentFlags().Int64(key, 540, cmdUtil.WrapString("Age of a lock in seconds after which its holder is warned about the upcoming expiration"))

	key = "principals"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional YAML file with the registered principals. If empty, any non-empty principal is accepted"))

	key = "redis-url"
	ServeCmd.PersistentFlags().String(key, "redis://localhost:6379/0", cmdUtil.WrapString("(rstore) URL of the Redis server"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value/10, HeartbeatRTT=value/100) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(dstore) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(dstore) CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(dstore) DataDir is the directory used for storing the snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("(dstore, rstore) Timeout in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, or the socket path for the unix transport)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("(tcp, unix) Maximum number of requests of one connection handled concurrently"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("(tcp) Disable Nagle's algorithm on accepted connections"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// the config file only provides defaults, flags and env variables win
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	shards, err := parseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.RedisURL = viper.GetString("redis-url")
	serveCmdConfig.ExpirationSecond = viper.GetInt64(common.KeyTimeUntilExpiration)
	serveCmdConfig.WarningSecond = viper.GetInt64(common.KeyTimeUntilWarning)
	serveCmdConfig.PrincipalsFile = viper.GetString("principals")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.WorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.ExpirationSecond <= 0 {
		return fmt.Errorf("%s must be positive", common.KeyTimeUntilExpiration)
	}

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = util.HashString(id, 0)
	} else if serveCmdConfig.HasRaftShard() {
		// error only if cluster mode
		return fmt.Errorf("ReplicaId is required for dstore shards")
	}

	// parse cluster members
	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		members, err := parseClusterMembers(clusterMembers)
		if err != nil {
			return err
		}
		serveCmdConfig.ClusterMembers = members
	} else if serveCmdConfig.HasRaftShard() {
		return fmt.Errorf("ClusterMembers is required for dstore shards")
	}

	// test if the replica id is in the cluster members (only for cluster mode)
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok && serveCmdConfig.HasRaftShard() {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// parseShards parses a list of shards in the format ID=TYPE,ID=TYPE,...
func parseShards(s string) ([]common.ServerShard, error) {
	shards := make([]common.ServerShard, 0)
	seen := make(map[uint64]bool)
	for _, shardConfig := range strings.Split(s, ",") {
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}
		if seen[shardID] {
			return nil, fmt.Errorf("shard %d is configured twice", shardID)
		}
		seen[shardID] = true

		shardType, err := common.ParseShardType(parts[1])
		if err != nil {
			return nil, err
		}

		shards = append(shards, common.ServerShard{
			ShardID: shardID,
			Type:    shardType,
		})
	}
	return shards, nil
}

// parseClusterMembers parses a list of cluster members in the format name=address,...
// The names are hashed to the replica ids used by dragonboat.
func parseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		parts := strings.Split(member, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[util.HashString(strings.TrimSpace(parts[0]), 0)] = strings.TrimSpace(parts[1])
	}
	return members, nil
}

// run starts the dRL server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	// watching starts after the last viper read, from now on only the watcher touches viper
	lockConfig := common.NewViperLockConfig(nil)
	if path := viper.GetString("config"); path != "" {
		lockConfig.Watch(func(e fsnotify.Event) {
			log.Infof("config file %s changed, lock intervals are now %s / %s", e.Name,
				lockConfig.ExpirationInterval(), lockConfig.WarningInterval())
		})
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		server.WithLockConfig(lockConfig),
	)

	return serv.Serve()
}
