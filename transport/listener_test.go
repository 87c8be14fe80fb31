package transport

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSendFileEndToEndLoopback exercises the full sender/receiver pair over
// a real loopback UDP socket pair, covering the boundary case of a file
// that spans several MSS-sized segments with no induced loss.
func TestSendFileEndToEndLoopback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MSS = 64
	cfg.TimeoutPollInterval = 10 * time.Millisecond
	cfg.WatchdogTimeouts = 200

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.bin")
	dstPath := filepath.Join(dir, "dst.bin")

	payload := make([]byte, cfg.MSS*5+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(srcPath, payload, 0o644))

	listener, err := NewListener(cfg, 0, dstPath)
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- listener.Serve(ctx, func(peer *net.UDPAddr) bool { return true })
	}()

	err = SendFile(ctx, cfg, listener.Addr(), srcPath, nil, nil)
	require.NoError(t, err)

	require.NoError(t, <-done)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

// TestSendFileEndToEndEmptyFile exercises the empty-file boundary case:
// only the SYN, the size segment announcing 0 bytes and the FIN ever cross
// the wire.
func TestSendFileEndToEndEmptyFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutPollInterval = 10 * time.Millisecond
	cfg.WatchdogTimeouts = 200

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "empty.bin")
	dstPath := filepath.Join(dir, "empty.out")
	require.NoError(t, os.WriteFile(srcPath, nil, 0o644))

	listener, err := NewListener(cfg, 0, dstPath)
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- listener.Serve(ctx, func(peer *net.UDPAddr) bool { return true })
	}()

	require.NoError(t, SendFile(ctx, cfg, listener.Addr(), srcPath, nil, nil))
	require.NoError(t, <-done)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	require.Empty(t, got)
}
