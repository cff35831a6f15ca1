package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/db/engines/maple"
	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/principal"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/lib/store/dstore"
	"github.com/ValentinKolb/dRL/lib/store/lstore"
	"github.com/ValentinKolb/dRL/lib/store/rstore"
	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/serializer"
	"github.com/ValentinKolb/dRL/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// Option configures an RPC server
type Option func(*RPCServer)

// WithLockConfig sets the interval configuration of the lock managers.
// Without it the static intervals of the ServerConfig are used.
func WithLockConfig(c lockable.IConfig) Option {
	return func(s *RPCServer) { s.lockConfig = c }
}

// WithResolver sets the principal resolver. Without it the principals file of the
// ServerConfig is loaded, or any non-empty principal is accepted if none is configured.
func WithResolver(r principal.IResolver) Option {
	return func(s *RPCServer) { s.resolver = r }
}

// WithAuditSink sets the sink receiving lock events (default: log and metrics)
func WithAuditSink(sink lockable.IAuditSink) Option {
	return func(s *RPCServer) { s.audit = sink }
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	opts ...Option,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RPCServer serves the shards of one node
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	lockConfig lockable.IConfig
	resolver   principal.IResolver
	audit      lockable.IAuditSink
}

// handleRequest decodes a request, lets the adapter of the shard handle it and encodes the response
func (s *RPCServer) handleRequest(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// lockOptions builds the options of the lock managers of all shards
func (s *RPCServer) lockOptions() ([]lockable.Option, error) {
	if s.lockConfig == nil {
		s.lockConfig = s.config.LockConfig()
	}
	if s.resolver == nil {
		if s.config.PrincipalsFile != "" {
			reg, err := principal.LoadRegistryFile(s.config.PrincipalsFile)
			if err != nil {
				return nil, err
			}
			s.resolver = reg
		} else {
			s.resolver = principal.AnyResolver{}
		}
	}
	if s.audit == nil {
		s.audit = lockable.MultiSink{lockable.NewLoggerSink(), lockable.NewMetricsSink(nil)}
	}
	return []lockable.Option{
		lockable.WithConfig(s.lockConfig),
		lockable.WithResolver(s.resolver),
		lockable.WithAuditSink(s.audit),
	}, nil
}

func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}
	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	opts, err := s.lockOptions()
	if err != nil {
		return err
	}

	// Function to create a new database instance
	dbFactory := func() db.RecordDB { return maple.NewMapleDB(nil) }

	// Only create the NodeHost if we have raft shards
	var nodeHost *dragonboat.NodeHost
	if s.config.HasRaftShard() {
		nodeHost, err = dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
	}

	/*
		Note: A single RPC Server can serve any number of shards with different stores.
		Every shard gets the lock manager adapter, which also serves the record operations.
	*/

	for _, shardConfig := range s.config.Shards {
		var st store.IStore

		switch shardConfig.Type {
		case common.ShardTypeLocal:
			st = lstore.NewLocalStore(dbFactory)

		case common.ShardTypeRaft:
			if err := nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, dstore.CreateStateMachineFactory(dbFactory), s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			st = dstore.NewDistributedStore(nodeHost, shardConfig.ShardID, s.config.Timeout())

		case common.ShardTypeRedis:
			st, err = rstore.NewRedisStore(rstore.Options{
				URL:     s.config.RedisURL,
				Prefix:  fmt.Sprintf("drl:%d", shardConfig.ShardID),
				Timeout: s.config.Timeout(),
			})
			if err != nil {
				return fmt.Errorf("failed to create redis store for shard %d: %w", shardConfig.ShardID, err)
			}

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		s.AddShard(shardConfig.ShardID, st, NewLockManagerServerAdapter(opts...))
		Logger.Infof("created %s shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	Logger.Infof("dRL setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handleRequest)
	return nil
}

// AddShard serves st under the given shard id, replacing an existing shard
func (s *RPCServer) AddShard(shardId uint64, st store.IStore, adapter IRPCServerAdapter) {
	s.shards.Store(shardId, serverShard{Store: st, Adapter: adapter})
}

// Serve initializes the server plus the shards and starts the transport layer
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}
