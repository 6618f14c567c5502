// Package handlers serves the "pythoncpp" debug type to an IDE over DAP.
// The front-end only accepts the launch; the real work is handed to the
// orchestrator and the front-end session terminates as soon as Python is
// being started.
package handlers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"pycppdbg/pkg/host"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/orchestrator"
	"pycppdbg/pkg/sequencer"
)

// Launcher runs a launch. *orchestrator.Launcher implements it.
type Launcher interface {
	Launch(ctx context.Context, req orchestrator.Request) (*sequencer.Result, error)
}

// Server hands each IDE connection its own front-end session.
type Server struct {
	Launcher Launcher
	// Workspace is the scope used when the launch arguments carry none.
	Workspace string

	mu sync.Mutex
	// sessions holds the live sessions; each leaves once Done closes.
	sessions map[host.Session]struct{}
}

// Serve accepts connections until l is closed.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	log := logger.For("Server")
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error("error accepting connection", "err", err)
			continue
		}

		// Allow multiple clients and reconnections
		go func() {
			s.Handle(ctx, conn, conn.RemoteAddr().String())
			log.Info("client connection ended, server keeps running")
		}()
	}
}

// Handle runs one front-end session on rwc and closes it when done.
func (s *Server) Handle(ctx context.Context, rwc io.ReadWriteCloser, name string) {
	log := logger.For("Server").With("client", name)
	log.Info("new client connected")
	defer rwc.Close()

	br := bufio.NewReader(rwc)
	// DAP messages start with the Content-Length header
	first, err := br.Peek(1)
	if err != nil {
		log.Warn("failed to peek first byte", "err", err)
		return
	}
	if first[0] != 'C' {
		log.Error("client does not speak DAP", "first", string(first))
		return
	}

	fs := newFrontend(s, rwc, br, log)
	fs.run(ctx)
	// A launch accepted on this connection still reports to it
	fs.launches.Wait()
}

// Shutdown stops every session started through this server.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	for sess := range sessions {
		if err := sess.Stop(ctx); err != nil {
			logger.For("Server").Warn("failed to stop session", "name", sess.Name(), "err", err)
		}
	}
}

// Wait blocks until every session started through this server has ended
// or ctx is done.
func (s *Server) Wait(ctx context.Context) {
	sessions := s.live()

	for _, sess := range sessions {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) live() []host.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]host.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

func (s *Server) track(res *sequencer.Result) {
	for _, sess := range []host.Session{res.Managed, res.Native} {
		if sess == nil {
			continue
		}
		s.mu.Lock()
		if s.sessions == nil {
			s.sessions = make(map[host.Session]struct{})
		}
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()

		go func() {
			<-sess.Done()
			s.mu.Lock()
			delete(s.sessions, sess)
			s.mu.Unlock()
		}()
	}
}
