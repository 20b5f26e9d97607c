package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DefaultTLSConfig returns a hardened TLS configuration.
// MinVersion TLS 1.2, AEAD-only cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// TransportOptions tunes the connection pool of outbound clients.
type TransportOptions struct {
	// MaxIdleConnsPerHost matters here: almost every call goes to one API host
	// plus the OSS bucket that serves generated assets.
	MaxIdleConnsPerHost int
	DialTimeout         time.Duration
	ResponseHeaderWait  time.Duration
}

// DefaultTransportOptions returns options for talking to a single vendor API.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		MaxIdleConnsPerHost: 32,
		DialTimeout:         30 * time.Second,
	}
}

// SecureTransport returns an http.Transport with TLS hardening.
func SecureTransport(opts TransportOptions) *http.Transport {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderWait,
	}
}

// SecureHTTPClient returns an http.Client with TLS hardening and the default
// transport options.
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: SecureTransport(DefaultTransportOptions()),
	}
}
