package transport

import "errors"

// Upstream proxy errors.
var (
	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not
	// speak SOCKS5 without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be made.
	ErrProxyCannotConnect = errors.New("cannot connect to upstream proxy")

	// ErrProxyTimeout is returned when the proxy did not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to upstream proxy")

	// ErrEmbeddedNotRunning is returned when a client is requested from an
	// embedded Tor daemon that has not been started.
	ErrEmbeddedNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the result of probing the upstream proxy.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy completed a SOCKS5 greeting,
	// or no proxy is configured.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType means something answered that is not SOCKS5.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect means the TCP connection failed.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout means the probe ran out of time.
	ProxyStatusTimeout
)

// String returns a human-readable description of the status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the error matching this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
