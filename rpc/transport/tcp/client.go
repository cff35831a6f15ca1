package tcp

import (
	"net"
	"strings"
	"time"

	"github.com/ValentinKolb/dRL/rpc/common"
	"github.com/ValentinKolb/dRL/rpc/transport"
	"github.com/ValentinKolb/dRL/rpc/transport/base"
)

// clientConnector implements base.IClientConnector for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

// Connect accepts host:port, a scheme prefix like http:// is ignored
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	if i := strings.Index(endpoint, "://"); i >= 0 {
		endpoint = strings.TrimSuffix(endpoint[i+3:], "/")
	}
	return net.DialTimeout("tcp", endpoint, 5*time.Second)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, _ common.ClientConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	// requests are small, send them right away
	return tcpConn.SetNoDelay(true)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a new TCP client transport
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
