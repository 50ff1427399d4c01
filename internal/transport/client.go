package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// probeTimeout bounds the SOCKS5 greeting performed by CheckConnection.
const probeTimeout = 2 * time.Second

// maxRedirects is the redirect limit for relay requests.
const maxRedirects = 10

// SOCKS5 greeting bytes.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// Client owns the dialer used for relay traffic.
//
// Design decision: The relays are ordinary HTTPS services, so unlike a
// hidden-service client we keep TLS verification on and the default
// compression behaviour. The SOCKS5 path only changes where TCP connections
// originate.
type Client struct {
	// proxyAddress is the upstream SOCKS5 address, empty for direct.
	proxyAddress string

	// dialer opens TCP connections (proxy.Direct or a SOCKS5 dialer).
	dialer proxy.Dialer

	// timeout is the overall HTTP client timeout.
	timeout time.Duration

	// userAgent is sent on every request when non-empty.
	userAgent string

	// headers are extra request headers.
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithSOCKS5 routes connections through the SOCKS5 proxy at address.
// An empty address keeps the direct dialer.
func WithSOCKS5(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header of relay requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeaders adds headers to every relay request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// NewClient creates a Client. The proxy address is validated but not
// contacted; call CheckConnection for that.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		dialer:  proxy.Direct,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress == "" {
		return c, nil
	}
	if !isValidProxyAddress(c.proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	c.dialer = dialer

	return c, nil
}

// isValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the upstream proxy address, or "" for direct.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// UsesProxy reports whether relay traffic goes through SOCKS5.
func (c *Client) UsesProxy() bool {
	return c.proxyAddress != ""
}

// CheckConnection performs a SOCKS5 greeting against the upstream proxy.
// Direct clients always report ProxyStatusOK.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if !c.UsesProxy() {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(probeTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// DialContext opens a TCP connection through the configured dialer.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HTTPClient returns a new HTTP client for relay requests.
func (c *Client) HTTPClient() *http.Client {
	base := &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if !c.UsesProxy() {
		base.Proxy = http.ProxyFromEnvironment
	}

	var rt http.RoundTripper = base
	if c.userAgent != "" || len(c.headers) > 0 {
		rt = &headerInjectingTransport{
			base:      base,
			userAgent: c.userAgent,
			headers:   c.headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// headerInjectingTransport adds the configured headers to every request,
// including redirects.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
