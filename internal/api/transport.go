// File: internal/api/transport.go
package api

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/xkilldash9x/promptpilot/internal/config"
)

const (
	dialTimeout         = 5 * time.Second
	keepAliveInterval   = 15 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	idleConnTimeout     = 30 * time.Second
	maxIdleConnsPerHost = 10
)

// newTransport builds the base transport for API traffic. Compression is handled by
// decompressingTransport, so the stdlib's transparent gzip is disabled.
func newTransport(cfg config.APIConfig, logger *zap.Logger) *http.Transport {
	dialer := &net.Dialer{
		Timeout:       dialTimeout,
		KeepAlive:     keepAliveInterval,
		FallbackDelay: 300 * time.Millisecond,
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed test environments
		ClientSessionCache: tls.NewLRUClientSessionCache(32),
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		DisableCompression:  true,
		ForceAttemptHTTP2:   cfg.HTTP2,
	}

	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	} else {
		tlsConfig.NextProtos = []string{"http/1.1"}
	}
	return transport
}
