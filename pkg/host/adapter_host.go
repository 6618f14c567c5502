package host

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/go-dap"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"pycppdbg/pkg/dapclient"
	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
)

// OutputFunc receives debuggee and adapter output of a session.
type OutputFunc func(session, category, text string)

// AdapterHost starts sessions by connecting to the adapter registered for
// each configuration's type.
type AdapterHost struct {
	// Label names the side in logs ("Python", "C++").
	Label    string
	Adapters Adapters
	// AdaptersFor, when set, gives the adapters of a workspace folder and
	// takes precedence over Adapters.
	AdaptersFor func(scope string) Adapters
	// Output receives output events; nil discards them.
	Output OutputFunc
	// Connect opens the transport; defaults to the package Connect.
	Connect func(ctx context.Context, adapter Adapter) (io.ReadWriteCloser, error)
	// Terminal runs runInTerminal requests; defaults to a local process.
	Terminal TerminalRunner
}

// NewAdapterHost creates a host using adapters.
func NewAdapterHost(label string, adapters Adapters) *AdapterHost {
	return &AdapterHost{Label: label, Adapters: adapters}
}

// Start connects to the adapter, runs the initialize / launch-or-attach /
// configurationDone handshake and returns once the adapter accepted the
// launch or attach.
func (h *AdapterHost) Start(ctx context.Context, scope string, cfg lc.Config) (Session, error) {
	log := logger.For(h.Label)

	request := cfg.Request()
	if request != "launch" && request != "attach" {
		return nil, fmt.Errorf("%w: got %q", ErrBadRequest, request)
	}

	adapters := h.Adapters
	if h.AdaptersFor != nil {
		adapters = h.AdaptersFor(scope)
	}
	adapter, err := adapters.For(cfg)
	if err != nil {
		return nil, err
	}

	cwd, _ := os.Getwd()
	vars := lc.Variables{File: DocumentFrom(ctx), WorkspaceFolder: scope, Cwd: cwd}
	args := vars.Expand(cfg)
	delete(args, KeyDebugServer)

	connect := h.Connect
	if connect == nil {
		connect = Connect
	}
	rwc, err := connect(ctx, adapter)
	if err != nil {
		return nil, fmt.Errorf("connect to %s adapter: %w", cfg.Type(), err)
	}

	s := newSession(h.Label, cfg.Name(), dapclient.New(h.Label, rwc))
	s.client.OnReverseRequest(h.reverseHandler(scope))
	if h.Output != nil {
		s.client.OnEvent("output", func(e dapclient.Event) {
			h.Output(s.name, gjson.GetBytes(e.Body, "category").String(), gjson.GetBytes(e.Body, "output").String())
		})
	}

	log.Info("starting debug session", "name", s.name, "type", cfg.Type(), "request", request, "id", s.id)
	if err := s.handshake(ctx, request, args); err != nil {
		s.close()
		return nil, err
	}
	log.Info("debug session active", "name", s.name, "id", s.id)
	return s, nil
}

func (s *session) handshake(ctx context.Context, request string, args lc.Config) error {
	// Adapters may send initialized right after the initialize response.
	initialized := s.client.Await("initialized")
	caps, err := s.client.Request(ctx, "initialize", dap.InitializeRequestArguments{
		ClientID:                     "pycppdbg",
		ClientName:                   "Python C++ Debugger",
		AdapterID:                    args.Type(),
		PathFormat:                   "path",
		LinesStartAt1:                true,
		ColumnsStartAt1:              true,
		SupportsRunInTerminalRequest: true,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	call, err := s.client.Start(request, args)
	if err != nil {
		return err
	}

	// debugpy answers launch only after configurationDone, so the response
	// is collected in the background.
	result := make(chan error, 1)
	go func() {
		_, err := call.Wait(ctx)
		result <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		if err != nil {
			return fmt.Errorf("%s: %w", request, err)
		}
		// Some adapters reply before initialized; keep waiting for it.
		result = nil
		if err := waitInitialized(ctx, initialized); err != nil {
			return err
		}
	case _, ok := <-initialized:
		if !ok {
			return ErrSessionEnded
		}
	}

	if gjson.GetBytes(caps, "supportsConfigurationDoneRequest").Bool() {
		if _, err := s.client.Request(ctx, "configurationDone", nil); err != nil {
			return fmt.Errorf("configurationDone: %w", err)
		}
	}

	if result != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-result:
			if err != nil {
				return fmt.Errorf("%s: %w", request, err)
			}
		}
	}
	return nil
}

func waitInitialized(ctx context.Context, initialized <-chan dapclient.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-initialized:
		if !ok {
			return ErrSessionEnded
		}
		return nil
	}
}

func newSessionID() string { return uuid.NewString() }
