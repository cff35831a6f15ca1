package base

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// IClientConnector provides the protocol specific parts of a client transport
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

var errConnectionClosed = errors.New("connection is closed")

// responseResult is handed from the reader goroutine to the waiting request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection is one connection to an endpoint. Requests are written under connMu,
// responses are read by a single reader goroutine and matched by request id.
type clientConnection struct {
	conn     net.Conn
	endpoint string
	stopCh   chan struct{}
	pending  *xsync.MapOf[uint64, chan responseResult]
	connMu   sync.Mutex
	parent   *clientTransport
}

type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64
	nextRequestID atomic.Uint64
}

// NewBaseClientTransport creates a client transport for the connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("%s transport: no endpoints configured", t.connector.GetName())
	}

	t.closeConnections()
	t.config = config

	perEndpoint := max(1, config.ConnectionsPerEndpoint)
	connections := make([]*clientConnection, 0, len(config.Endpoints)*perEndpoint)
	for _, endpoint := range config.Endpoints {
		for i := 0; i < perEndpoint; i++ {
			c := &clientConnection{
				endpoint: endpoint,
				stopCh:   make(chan struct{}),
				pending:  xsync.NewMapOf[uint64, chan responseResult](),
				parent:   t,
			}
			if err := c.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, perEndpoint, err)
				continue
			}
			connections = append(connections, c)
			go c.readResponses()
		}
	}
	if len(connections) == 0 {
		return fmt.Errorf("%s transport: failed to connect to any endpoint", t.connector.GetName())
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Opened %d of %d %s connections to %d endpoints",
		len(connections), len(config.Endpoints)*perEndpoint, t.connector.GetName(), len(config.Endpoints))
	return nil
}

func (t *clientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	retries := max(1, t.config.RetryCount)
	backoff := 50 * time.Millisecond

	var lastErr error
	for i := 0; i < retries; i++ {
		c := t.nextConnection()
		if c == nil {
			return nil, fmt.Errorf("%s transport not connected", t.connector.GetName())
		}

		data, err := c.send(shardId, t.nextRequestID.Add(1), req)
		if err == nil {
			return data, nil
		}
		lastErr = err
		Logger.Debugf("request to %s failed (attempt %d/%d): %v", c.endpoint, i+1, retries, err)

		if i+1 < retries {
			// exponential backoff with +-10% jitter
			time.Sleep(time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64())))
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", retries, lastErr)
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// nextConnection selects the next connection round robin
func (t *clientTransport) nextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
	}
}

func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		close(c.stopCh)
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
		c.failPending(errConnectionClosed)
	}
}

// send writes one request and waits for its response
func (c *clientConnection) send(shardId, requestID uint64, req []byte) ([]byte, error) {
	timeout := time.Duration(c.parent.config.TimeoutSecond) * time.Second

	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return nil, errConnectionClosed
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(c.conn, shardId, requestID, req)
	c.connMu.Unlock()
	if err != nil {
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, fmt.Errorf("request %d to %s timed out", requestID, c.endpoint)
	}
}

// readResponses hands every response to its waiting request. After a read error all pending
// requests fail and the connection is re-established, until the transport is closed.
func (c *clientConnection) readResponses() {
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		shardID, requestID, data, err := readFrame(conn, nil)
		if err == nil {
			if respCh, ok := c.pending.Load(requestID); ok {
				respCh <- responseResult{data: data}
			} else {
				Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
			}
			continue
		}

		select {
		case <-c.stopCh:
			return
		default:
		}

		Logger.Warningf("Connection to %s failed: %v", c.endpoint, err)
		c.failPending(fmt.Errorf("error reading response: %w", err))
		if err := c.reconnect(); err != nil {
			Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
			return
		}
	}
}

func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(id uint64, respCh chan responseResult) bool {
		select {
		case respCh <- responseResult{err: err}:
		default:
		}
		return true
	})
}

// reconnect establishes or restores the connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	select {
	case <-c.stopCh:
		return errConnectionClosed
	default:
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}
	c.conn = conn
	return nil
}
