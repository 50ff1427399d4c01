package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nao1215/relayview/internal/config"
)

// TestNewServeCmd tests the serve command flags.
func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	listen := cmd.Flags().Lookup("listen")
	if listen == nil || listen.DefValue != config.DefaultListenAddress {
		t.Errorf("unexpected listen flag %+v", listen)
	}
	for _, name := range []string{"endpoint", "timeout", "strict", "tor", "socks5", "no-history"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if cmd.Args == nil {
		t.Error("expected Args validator")
	}
}

// TestRunServeShutdown tests that serve returns cleanly on cancellation.
func TestRunServeShutdown(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Verbose = true
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.HistoryDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	var status bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, &status, setupLogger(&bytes.Buffer{}, false)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
