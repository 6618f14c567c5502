// Package sequencer runs the attach sequence: start Python stopped at
// entry, read its pid, attach the native debugger to it, then let Python
// continue.
package sequencer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pycppdbg/pkg/discovery"
	"pycppdbg/pkg/host"
	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/resolver"
)

// DefaultSettleDelay is the wait between native attach and resume.
const DefaultSettleDelay = 500 * time.Millisecond

// Discoverer finds the pid of a managed session. *discovery.Bridge
// implements it.
type Discoverer interface {
	Discover(ctx context.Context, session discovery.Requester) (int, error)
}

// Options are per-run settings.
type Options struct {
	// Scope is the workspace folder the sessions run in.
	Scope string
	// Optimized skips the settling delay.
	Optimized bool
}

// Result holds the sessions of a successful run. Both keep running after
// Run returns; the caller owns them.
type Result struct {
	Managed host.Session
	Native  host.Session
	PID     int
	// Resumed is false when the user asked to stop on entry.
	Resumed bool
	// ResumeErr is set when the final continue failed. Both sessions are
	// still attached.
	ResumeErr error
}

// Sequencer performs a single attach sequence.
type Sequencer struct {
	Managed   host.Host
	Native    host.Host
	Discovery Discoverer

	// SettleDelay is waited before resuming; Optimized runs use 0.
	SettleDelay time.Duration
	// Sleep waits for d; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnManagedStartRequested fires right before the managed session is
	// started.
	OnManagedStartRequested func()
	// OnTransition observes state changes.
	OnTransition func(from, to State)

	ran   atomic.Bool
	mu    sync.Mutex
	state State
}

// New creates a Sequencer with the default settling delay.
func New(managed, native host.Host, d Discoverer) *Sequencer {
	return &Sequencer{
		Managed:     managed,
		Native:      native,
		Discovery:   d,
		SettleDelay: DefaultSettleDelay,
	}
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	logger.For("Sequencer").Debug("state change", "from", from, "to", to)
	if s.OnTransition != nil {
		s.OnTransition(from, to)
	}
}

func (s *Sequencer) fail(reason Reason, err error) error {
	s.transition(Failed)
	return &Error{Reason: reason, Err: err}
}

// Run executes the sequence for pair. It returns once both sessions are
// attached and the managed one was resumed (or left stopped on request).
func (s *Sequencer) Run(ctx context.Context, pair resolver.Pair, opts Options) (*Result, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	log := logger.For("DebugSession")
	log.Divider("Starting Debug Session")

	// Python must be paused while the native debugger attaches
	managedCfg := pair.Managed.Clone()
	userStopOnEntry := managedCfg.Bool(lc.KeyStopOnEntry)
	managedCfg[lc.KeyStopOnEntry] = true
	log.Info("original stopOnEntry value", "stopOnEntry", userStopOnEntry)

	s.transition(ManagedStarting)
	if s.OnManagedStartRequested != nil {
		s.OnManagedStartRequested()
	}
	log.Info("starting Python debugger", "name", managedCfg.Name())
	managed, err := s.Managed.Start(ctx, opts.Scope, managedCfg)
	if err != nil {
		log.Error("Python debugger failed to start", "err", err)
		return nil, s.fail(ManagedStartFailed, err)
	}
	s.transition(ManagedStopped)
	log.Info("Python debugger started", "id", managed.ID(), "name", managed.Name())

	s.transition(NativeAttaching)
	bridge := s.Discovery
	if bridge == nil {
		bridge = discovery.New()
	}
	pid, err := bridge.Discover(ctx, managed)
	if err != nil {
		log.Error("process id unavailable", "err", err)
		return nil, s.fail(ProcessIDUnavailable, err)
	}

	nativeCfg := pair.Native.Clone()
	nativeCfg[lc.KeyProcessID] = pid
	nativeCfg[lc.KeyPID] = pid
	log.Config("C++ configuration with PID", nativeCfg)

	log.Info("starting C++ debugger", "name", nativeCfg.Name(), "pid", pid)
	native, err := s.Native.Start(ctx, opts.Scope, nativeCfg)
	if err != nil {
		log.Error("C++ debugger failed to start, stopping Python session", "err", err)
		s.rollback(ctx, managed)
		return nil, s.fail(NativeAttachFailed, err)
	}
	s.transition(Attached)
	log.Info("C++ debugger started successfully", "id", native.ID())

	res := &Result{Managed: managed, Native: native, PID: pid}

	delay := s.SettleDelay
	if opts.Optimized {
		delay = 0
	}
	log.Info("waiting before continuing", "delay", delay)
	if err := s.sleep(ctx, delay); err != nil {
		res.ResumeErr = err
		s.transition(Terminated)
		return res, nil
	}

	if userStopOnEntry {
		log.Info("keeping stopOnEntry as user requested")
	} else {
		log.Info("continuing Python execution (stopOnEntry was not set by user)")
		if err := managed.Resume(ctx); err != nil {
			log.Warn("failed to continue Python execution", "err", err)
			res.ResumeErr = err
		} else {
			res.Resumed = true
		}
	}

	log.Divider("Debug Session Ready")
	log.Info("both Python and C++ debuggers are attached and ready")
	// Both sessions are released to the caller
	s.transition(Terminated)
	return res, nil
}

// rollback stops the managed session after a failed native attach. Its
// own failure is logged only.
func (s *Sequencer) rollback(ctx context.Context, managed host.Session) {
	// The launch context may already be done; stopping must still happen
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := managed.Stop(stopCtx); err != nil {
		logger.For("DebugSession").Warn("failed to stop Python session", "id", managed.ID(), "err", err)
	}
}

func (s *Sequencer) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
