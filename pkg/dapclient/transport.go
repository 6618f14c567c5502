package dapclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"time"

	"pycppdbg/pkg/utils"
)

// processTransport talks DAP over the stdio of a debug adapter process.
type processTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	closeOnce sync.Once
	closeErr  error
}

// StartProcess launches a debug adapter and returns its stdio as a
// transport. Closing the transport kills the adapter.
func StartProcess(cmd *exec.Cmd) (io.ReadWriteCloser, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	return &processTransport{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

func (t *processTransport) Read(p []byte) (int, error) { return t.stdout.Read(p) }

func (t *processTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }

func (t *processTransport) Close() error {
	t.closeOnce.Do(func() {
		_ = t.stdin.Close()
		done := make(chan error, 1)
		go func() { done <- t.cmd.Wait() }()

		// Give the adapter a moment to exit on its own after disconnect
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			if t.cmd.Process != nil {
				_ = t.cmd.Process.Kill()
			}
			<-done
		}
	})
	return t.closeErr
}

// DialSocket connects to a debug adapter started in server mode.
func DialSocket(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := utils.DialWithRetry(ctx, addr, 5, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("dial debug adapter %s: %w", addr, err)
	}

	// Set keep-alive to detect dead adapters
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}
	return conn, nil
}
