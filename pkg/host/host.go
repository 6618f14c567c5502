// Package host starts debug sessions by driving debug adapters over DAP.
// The managed side talks to debugpy, the native side to cppdbg, cppvsdbg or
// lldb; both look the same to callers.
package host

import (
	"context"
	"encoding/json"
	"errors"

	lc "pycppdbg/pkg/launchconfig"
)

var (
	// ErrNoAdapter means no debug adapter is registered for a config type.
	ErrNoAdapter = errors.New("no debug adapter registered for type")
	// ErrBadRequest means the config's request is neither launch nor attach.
	ErrBadRequest = errors.New("configuration request must be launch or attach")
	// ErrSessionEnded means the session ended before it became active.
	ErrSessionEnded = errors.New("debug session ended during startup")
)

// Session is a running debug session.
type Session interface {
	ID() string
	// Name is the configuration name the session was started with.
	Name() string
	CustomRequest(ctx context.Context, command string, args any) (json.RawMessage, error)
	// Resume continues a stopped debuggee.
	Resume(ctx context.Context) error
	// Stop ends the session and the debuggee. Safe to call more than once.
	Stop(ctx context.Context) error
	// Done is closed once the session is no longer usable.
	Done() <-chan struct{}
}

// Host starts sessions from resolved configurations.
type Host interface {
	Start(ctx context.Context, scope string, cfg lc.Config) (Session, error)
}

type documentKey struct{}

// WithDocument records the file ${file} expands to for sessions started
// with ctx.
func WithDocument(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, documentKey{}, path)
}

// DocumentFrom returns the document recorded with WithDocument.
func DocumentFrom(ctx context.Context) string {
	s, _ := ctx.Value(documentKey{}).(string)
	return s
}
