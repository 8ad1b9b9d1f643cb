package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"
)

type Options struct {
	// PreferIPv4 forces tcp4 dials; some networks resolve the Gemini and
	// Telegram endpoints to unroutable IPv6 addresses.
	PreferIPv4 bool
	Timeout    time.Duration
}

// New builds the shared outbound client for capability and Telegram traffic.
// An image generation call can hold the connection open for minutes before
// the first response byte, so the header timeout is far above usual API
// defaults while connect and TLS stay tight.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	dial := dialer.DialContext
	if opts.PreferIPv4 {
		dial = func(ctx context.Context, _ string, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		}
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dial,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: 150 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
