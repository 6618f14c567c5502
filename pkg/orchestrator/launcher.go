// Package orchestrator ties a launch together: it validates and resolves
// the pythoncpp record, runs the attach sequence and reports failures to
// the user.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"pycppdbg/pkg/host"
	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/resolver"
	"pycppdbg/pkg/sequencer"
)

var (
	// ErrNoConfiguration means the IDE sent an empty record, which happens
	// when launch.json is missing.
	ErrNoConfiguration = errors.New("Please make sure you have a launch.json file with a configuration of type 'pythoncpp' to use this debugger")
	// ErrLaunchInProgress means another launch for the same workspace has
	// not finished its attach sequence yet.
	ErrLaunchInProgress = errors.New("a Python C++ debug session is already starting in this workspace")
)

// ConfigResolver resolves a launch record. *resolver.Resolver implements it.
type ConfigResolver interface {
	Resolve(ctx context.Context, req *lc.LaunchRequest, scope string) (resolver.Pair, error)
}

// Request is a single launch.
type Request struct {
	Scope  string
	Launch *lc.LaunchRequest
	// Notifier receives user-facing errors; nil drops them.
	Notifier Notifier
	// OnManagedStartRequested fires right before debugpy is started.
	OnManagedStartRequested func()
	OnTransition            func(from, to sequencer.State)
}

// Launcher runs launches. One Launcher is shared by all front-ends of a
// process; overlapping launches in one workspace are rejected.
type Launcher struct {
	Resolver  ConfigResolver
	Managed   host.Host
	Native    host.Host
	Discovery sequencer.Discoverer
	// SettleDelay is waited before resuming Python; New sets
	// sequencer.DefaultSettleDelay.
	SettleDelay time.Duration
	// Sleep replaces the settling wait; tests only.
	Sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	inflight map[string]*semaphore.Weighted
}

// New creates a Launcher with the default settling delay.
func New(r ConfigResolver, managed, native host.Host, d sequencer.Discoverer) *Launcher {
	return &Launcher{
		Resolver:    r,
		Managed:     managed,
		Native:      native,
		Discovery:   d,
		SettleDelay: sequencer.DefaultSettleDelay,
	}
}

// Launch resolves and sequences req. Every failure is reported through
// req.Notifier before it is returned.
func (l *Launcher) Launch(ctx context.Context, req Request) (*sequencer.Result, error) {
	notifier := req.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	id := uuid.NewString()
	log := logger.For("Launcher").With("launch", id)

	if req.Launch == nil || req.Launch.IsEmpty() {
		log.Error(ErrNoConfiguration.Error())
		notifier.ShowError(ErrNoConfiguration.Error())
		return nil, ErrNoConfiguration
	}
	log.Config("Input configuration", req.Launch)

	pair, err := l.Resolver.Resolve(ctx, req.Launch, req.Scope)
	if err != nil {
		notifier.ShowError(err.Error())
		return nil, err
	}

	release, ok := l.acquire(req.Scope)
	if !ok {
		log.Warn("launch rejected, another one is running", "scope", req.Scope)
		notifier.ShowError(ErrLaunchInProgress.Error())
		return nil, ErrLaunchInProgress
	}
	defer release()

	seq := sequencer.New(l.Managed, l.Native, l.Discovery)
	seq.SettleDelay = l.SettleDelay
	seq.Sleep = l.Sleep
	seq.OnManagedStartRequested = req.OnManagedStartRequested
	seq.OnTransition = req.OnTransition

	if req.Launch.File != "" {
		ctx = host.WithDocument(ctx, req.Launch.File)
	}
	res, err := seq.Run(ctx, pair, sequencer.Options{Scope: req.Scope, Optimized: req.Launch.OptimizedLaunch})
	if err != nil {
		notifier.ShowError(err.Error())
		return nil, err
	}
	if res.ResumeErr != nil {
		notifier.ShowWarning(fmt.Sprintf("both debuggers are attached but Python could not be resumed: %v", res.ResumeErr))
	}
	log.Info("launch finished", "pid", res.PID, "resumed", res.Resumed)
	return res, nil
}

func (l *Launcher) acquire(scope string) (func(), bool) {
	l.mu.Lock()
	if l.inflight == nil {
		l.inflight = make(map[string]*semaphore.Weighted)
	}
	sem, ok := l.inflight[scope]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.inflight[scope] = sem
	}
	l.mu.Unlock()

	if !sem.TryAcquire(1) {
		return nil, false
	}
	return func() { sem.Release(1) }, true
}
