package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"pycppdbg/pkg/logger"
)

// IsConnectionClosedError checks if an error is due to a closed connection
// or a debug adapter that exited, as opposed to a real protocol failure.
func IsConnectionClosedError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return true
	}

	errStr := err.Error()

	// Common patterns for connection closed errors
	closedPatterns := []string{
		"use of closed network connection",
		"connection reset by peer",
		"broken pipe",
		"EOF",
		"file already closed",
		"io: read/write on closed pipe",
	}

	for _, pattern := range closedPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	// Check for net.OpError with specific operations
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "read" || opErr.Op == "write" {
			if opErr.Err != nil && strings.Contains(opErr.Err.Error(), "closed") {
				return true
			}
		}
	}

	return false
}

// DialWithRetry attempts to connect to a debug adapter listening on addr.
// Adapters started in server mode need a moment before they accept.
func DialWithRetry(ctx context.Context, addr string, maxRetries int, delay time.Duration) (net.Conn, error) {
	log := logger.For("Dial")
	var lastErr error
	var d net.Dialer

	for i := 0; i < maxRetries; i++ {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			return conn, nil
		}

		lastErr = err
		log.Warn("failed to connect to debug adapter", "addr", addr, "attempt", i+1, "max", maxRetries, "err", err)

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}
