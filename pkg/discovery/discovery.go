// Package discovery asks a running debugpy session for the OS process id
// of the interpreter it controls.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"pycppdbg/pkg/dapclient"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/utils"
)

// SystemInfoCommand is debugpy's custom request returning process details.
const SystemInfoCommand = "pydevdSystemInfo"

// pidPath locates the pid in the pydevdSystemInfo response body.
const pidPath = "process.pid"

var (
	// ErrSessionGone means the managed session ended before answering.
	ErrSessionGone = errors.New("managed session is gone")
	// ErrUnsupported means the adapter rejected the system info request.
	ErrUnsupported = errors.New("managed session does not support " + SystemInfoCommand)
	// ErrNoProcessID means the response had no usable pid.
	ErrNoProcessID = errors.New("managed session did not report a process id")
	// ErrProcessExited means the reported pid no longer exists.
	ErrProcessExited = errors.New("reported process is not running")
)

// Requester is the part of a debug session discovery needs.
type Requester interface {
	CustomRequest(ctx context.Context, command string, args any) (json.RawMessage, error)
	Done() <-chan struct{}
}

// Bridge performs discovery. The zero value is ready to use.
type Bridge struct {
	// CheckLiveness rejects pids that are not running on this host. Only
	// meaningful when the managed process is local.
	CheckLiveness bool

	alive func(pid int) bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLivenessCheck enables the local process existence check.
func WithLivenessCheck() Option {
	return func(b *Bridge) { b.CheckLiveness = true }
}

// New creates a Bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Discover is a convenience for New().Discover.
func Discover(ctx context.Context, session Requester) (int, error) {
	return New().Discover(ctx, session)
}

// Discover blocks until the session answers; the caller owns any timeout.
func (b *Bridge) Discover(ctx context.Context, session Requester) (int, error) {
	log := logger.For("Discovery")

	select {
	case <-session.Done():
		return 0, ErrSessionGone
	default:
	}

	log.Info("requesting process info from Python debugger", "command", SystemInfoCommand)
	body, err := session.CustomRequest(ctx, SystemInfoCommand, nil)
	if err != nil {
		var respErr *dapclient.ResponseError
		switch {
		case errors.As(err, &respErr):
			return 0, fmt.Errorf("%w: %s", ErrUnsupported, respErr.Message)
		case errors.Is(err, dapclient.ErrClosed), utils.IsConnectionClosedError(err):
			return 0, fmt.Errorf("%w: %v", ErrSessionGone, err)
		default:
			return 0, fmt.Errorf("%s request: %w", SystemInfoCommand, err)
		}
	}

	pid, err := ExtractPID(body)
	if err != nil {
		return 0, err
	}

	if b.CheckLiveness {
		alive := b.alive
		if alive == nil {
			alive = processAlive
		}
		if !alive(pid) {
			return 0, fmt.Errorf("%w: pid %d", ErrProcessExited, pid)
		}
	}

	log.Info("python process discovered", "pid", pid)
	return pid, nil
}

// ExtractPID reads process.pid from a pydevdSystemInfo body.
func ExtractPID(body []byte) (int, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%w: malformed response", ErrNoProcessID)
	}
	v := gjson.GetBytes(body, pidPath)
	if v.Type != gjson.Number || v.Int() <= 0 || float64(v.Int()) != v.Float() {
		return 0, ErrNoProcessID
	}
	return int(v.Int()), nil
}
