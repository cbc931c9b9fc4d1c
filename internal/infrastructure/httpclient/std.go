package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewStdClient returns a net/http client for SDKs that bring their own request plumbing
// (go-binance, bybit, solana). The timeout bounds the whole exchange, body read included.
func NewStdClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
