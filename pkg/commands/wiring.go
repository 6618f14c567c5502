package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pycppdbg/pkg/discovery"
	"pycppdbg/pkg/host"
	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/orchestrator"
	"pycppdbg/pkg/pyexec"
	"pycppdbg/pkg/resolver"
	"pycppdbg/pkg/sequencer"
)

// newLauncher wires the launcher from the loaded config. scope is the
// default workspace; launches naming another folder resolve the
// interpreter there. out receives debuggee output; nil drops it.
func newLauncher(ctx context.Context, scope string, out io.Writer) *orchestrator.Launcher {
	python := pyexec.Workspaces(cfg.PythonPath)
	adaptersFor := func(scope string) host.Adapters {
		return host.DefaultAdapters(python(scope).Resolve(ctx, "")).Merge(cfg.Adapters)
	}

	managed := host.NewAdapterHost("Python", adaptersFor(scope))
	managed.AdaptersFor = adaptersFor
	native := host.NewAdapterHost("C++", adaptersFor(scope))
	native.AdaptersFor = adaptersFor
	if out != nil {
		output := writeOutput(out)
		managed.Output = output
		native.Output = output
	}

	var opts []discovery.Option
	if cfg.LivenessCheck {
		opts = append(opts, discovery.WithLivenessCheck())
	}

	r := resolver.New(lc.FileStore{}, python(scope))
	r.PythonFor = python
	l := orchestrator.New(r, managed, native, discovery.New(opts...))
	l.SettleDelay = cfg.SettleDelay
	return l
}

func writeOutput(w io.Writer) host.OutputFunc {
	return func(session, category, text string) {
		if category == "telemetry" {
			return
		}
		_, _ = fmt.Fprint(w, text)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runAndWait launches req and keeps both sessions until they end or the
// user interrupts, in which case they are stopped.
func runAndWait(ctx context.Context, l *orchestrator.Launcher, scope string, req *lc.LaunchRequest, notifyTo io.Writer) error {
	log := logger.For("CLI")
	res, err := l.Launch(ctx, orchestrator.Request{
		Scope:    scope,
		Launch:   req,
		Notifier: &orchestrator.WriterNotifier{W: notifyTo},
	})
	if err != nil {
		return err
	}
	log.Info("debugging", "pid", res.PID, "python", res.Managed.ID(), "native", res.Native.ID())
	return waitSessions(ctx, res)
}

func waitSessions(ctx context.Context, res *sequencer.Result) error {
	select {
	case <-res.Managed.Done():
	case <-res.Native.Done():
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	var firstErr error
	for _, s := range []host.Session{res.Native, res.Managed} {
		if err := s.Stop(stopCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
