package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"pycppdbg/pkg/dapclient"
	"pycppdbg/pkg/logger"
)

// ErrNoThread means there is no thread to resume.
var ErrNoThread = errors.New("debuggee has no threads")

type session struct {
	id     string
	label  string
	name   string
	client *dapclient.Client

	mu         sync.Mutex
	lastThread int

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

func newSession(label, name string, client *dapclient.Client) *session {
	s := &session{
		id:     newSessionID(),
		label:  label,
		name:   name,
		client: client,
		done:   make(chan struct{}),
	}

	client.OnEvent("stopped", func(e dapclient.Event) {
		if id := gjson.GetBytes(e.Body, "threadId"); id.Exists() {
			s.mu.Lock()
			s.lastThread = int(id.Int())
			s.mu.Unlock()
		}
	})
	client.OnEvent("terminated", func(dapclient.Event) { s.markDone() })
	go func() {
		<-client.Done()
		s.markDone()
	}()
	return s
}

func (s *session) ID() string   { return s.id }
func (s *session) Name() string { return s.name }

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) CustomRequest(ctx context.Context, command string, args any) (json.RawMessage, error) {
	return s.client.Request(ctx, command, args)
}

func (s *session) Resume(ctx context.Context) error {
	s.mu.Lock()
	thread := s.lastThread
	s.mu.Unlock()

	if thread == 0 {
		body, err := s.client.Request(ctx, "threads", nil)
		if err != nil {
			return fmt.Errorf("threads: %w", err)
		}
		id := gjson.GetBytes(body, "threads.0.id")
		if !id.Exists() {
			return ErrNoThread
		}
		thread = int(id.Int())
	}

	logger.For(s.label).Info("resuming debuggee", "name", s.name, "thread", thread)
	if _, err := s.client.Request(ctx, "continue", map[string]any{"threadId": thread}); err != nil {
		return fmt.Errorf("continue: %w", err)
	}
	return nil
}

func (s *session) Stop(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		logger.For(s.label).Info("stopping debug session", "name", s.name, "id", s.id)
		select {
		case <-s.client.Done():
		default:
			_, err = s.client.Request(ctx, "disconnect", map[string]any{"terminateDebuggee": true})
			if errors.Is(err, dapclient.ErrClosed) {
				err = nil
			}
		}
		if cerr := s.client.Close(); err == nil && cerr != nil && !errors.Is(cerr, dapclient.ErrClosed) {
			err = cerr
		}
		s.markDone()
	})
	return err
}

// close releases the transport without a disconnect request.
func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.client.Close()
		s.markDone()
	})
}

func (s *session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
