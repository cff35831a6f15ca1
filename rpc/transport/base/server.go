package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
)

// defaultWorkersPerConn is used if the server config does not set WorkersPerConn
const defaultWorkersPerConn = 64

// IServerConnector provides the protocol specific parts of a server transport
type IServerConnector interface {
	// Listen creates the listener for config.Endpoint
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g. "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	bufferPool *sync.Pool

	requestsTotal   *metrics.Counter
	requestDuration *metrics.Summary
}

// NewBaseServerTransport creates a server transport for the connector. Every connection gets
// a read buffer of bufferSize bytes from a pool, larger frames allocate their own buffer.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	bufferSize = max(bufferSize, headerSize)
	return &serverTransport{
		connector: connector,
		bufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, bufferSize)
			},
		},
		requestsTotal:   metrics.GetOrCreateCounter(fmt.Sprintf(`drl_rpc_requests_total{transport=%q}`, connector.GetName())),
		requestDuration: metrics.GetOrCreateSummary(fmt.Sprintf(`drl_rpc_request_duration_seconds{transport=%q}`, connector.GetName())),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Endpoint, t.workersPerConn())
	return t.serve(listener)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) workersPerConn() int {
	if t.config.WorkersPerConn > 0 {
		return t.config.WorkersPerConn
	}
	return defaultWorkersPerConn
}

// serve accepts connections until the listener is closed
func (t *serverTransport) serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		if err != nil {
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}
		go t.handleConnection(conn)
	}
}

// handleConnection reads frames from one connection and answers them from a bounded set of workers.
// Responses carry the request id of their request and may be written out of order.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	workers := make(chan struct{}, t.workersPerConn())
	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)

	respond := func(shardID, requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(shardID, data)
		t.requestsTotal.Inc()
		t.requestDuration.UpdateDuration(start)
		Logger.Debugf("Processed request %d for shard %d in %s", requestID, shardID, time.Since(start))

		writeMu.Lock()
		defer writeMu.Unlock()
		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}
		if err := writeFrame(conn, shardID, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	for {
		buf := t.bufferPool.Get().([]byte)
		shardID, requestID, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				Logger.Debugf("Connection from %s closed", conn.RemoteAddr())
			} else {
				Logger.Errorf("Error reading request from %s: %v", conn.RemoteAddr(), err)
			}
			break
		}
		if t.handler == nil {
			t.bufferPool.Put(buf)
			Logger.Errorf("No handler registered, closing connection")
			break
		}

		// blocks once all workers of this connection are busy
		workers <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				t.bufferPool.Put(buf)
				<-workers
				wg.Done()
			}()
			respond(shardID, requestID, data)
		}()
	}

	// finish in flight requests before the connection is closed
	wg.Wait()
}
