package probe

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Connection-level timeouts so a stalled handshake cannot outlive the per-probe deadline.
const (
	connectTimeout      = 15 * time.Second
	tlsHandshakeTimeout = 15 * time.Second
)

// NewHTTPClient returns the client used for liveness probes. Redirect handling is
// installed by New; the overall deadline comes from the per-probe context.
//
// Connections are dialed here, TLS included, so that each one is wrapped in a headerConn.
// Keep-alives are off because headerConn only inspects the first response on a connection.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &headerConn{Conn: conn}, nil
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLS(ctx, dialer, network, addr)
		},
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		DisableKeepAlives:   true,
	}
	return &http.Client{Transport: transport}
}

func dialTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	hsCtx, cancel := context.WithTimeout(ctx, tlsHandshakeTimeout)
	defer cancel()
	conn := tls.Client(raw, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}})
	if err := conn.HandshakeContext(hsCtx); err != nil {
		raw.Close()
		return nil, err
	}
	return &headerConn{Conn: conn}, nil
}
