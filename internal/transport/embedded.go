package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds the embedded Tor bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon through tornago. Relay requests
// sent through it leave from a Tor exit, which helps when a relay
// rate-limits or blocks the local address.
//
// Bootstrapping builds circuits and usually takes one to three minutes.
type EmbeddedTor struct {
	// process is the running daemon, nil when stopped.
	process *tornago.TorProcess

	// startupTimeout bounds the bootstrap.
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the bootstrap deadline. Non-positive values keep
// DefaultStartupTimeout.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates a stopped daemon manager.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon with OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout expires. Starting a running daemon
// is a no-op.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	if e.process != nil {
		return nil
	}

	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(cfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}
	// The bootstrap itself cannot be interrupted; honor a cancellation
	// that arrived meanwhile.
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // already failing
		return err
	}

	e.process = process
	return nil
}

// Stop shuts the daemon down. Stopping a stopped daemon is a no-op.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	p := e.process
	e.process = nil
	return p.Stop()
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when stopped.
func (e *EmbeddedTor) SocksAddr() string {
	if e.process == nil {
		return ""
	}
	return e.process.SocksAddr()
}

// IsRunning reports whether the daemon has been started.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// NewClient returns a relay Client that dials through this daemon.
// opts are applied after the proxy option.
func (e *EmbeddedTor) NewClient(opts ...Option) (*Client, error) {
	if !e.IsRunning() {
		return nil, ErrEmbeddedNotRunning
	}
	return NewClient(append([]Option{WithSOCKS5(e.SocksAddr())}, opts...)...)
}
