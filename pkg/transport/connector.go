package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrServerName indicates a target host that cannot serve as the TLS
// server name for certificate verification.
var ErrServerName = errors.New("host is not usable as a tls server name")

// Connector produces TLS client connections from an immutable
// configuration. Build one with NewConnector, or share the process-wide
// DefaultConnector. A Connector is safe for concurrent use.
type Connector struct {
	config *tls.Config
}

// NewConnector wraps a TLS client configuration. The config is cloned
// at construction, so later mutation by the caller does not reach
// connections made through the connector.
func NewConnector(config *tls.Config) *Connector {
	return &Connector{config: config.Clone()}
}

var (
	defaultConnectorOnce sync.Once
	defaultConnector     *Connector
)

// DefaultConnector returns the shared connector used for wss dials that
// do not supply their own. It is built on first use, exactly once, and
// verifies server certificates against the system root pool with a
// floor of TLS 1.2.
func DefaultConnector() *Connector {
	defaultConnectorOnce.Do(func() {
		cfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		// Leaving RootCAs nil falls back to the platform verifier,
		// which is the only option left when the pool cannot be read.
		if roots, err := x509.SystemCertPool(); err == nil {
			cfg.RootCAs = roots
		}
		defaultConnector = &Connector{config: cfg}
	})
	return defaultConnector
}

// Client layers a TLS client connection over conn, to be verified as
// serverName. No I/O happens here; the handshake runs when the caller
// drives it. An empty serverName is rejected unless the configuration
// skips verification, since verification needs a name to check.
func (c *Connector) Client(conn net.Conn, serverName string) (*tls.Conn, error) {
	if serverName == "" && !c.config.InsecureSkipVerify {
		return nil, fmt.Errorf("%w: empty host", ErrServerName)
	}
	cfg := c.config.Clone()
	cfg.ServerName = serverName
	return tls.Client(conn, cfg), nil
}
