package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/go-dap"
	"github.com/tidwall/gjson"

	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/orchestrator"
	"pycppdbg/pkg/utils"
)

// KeyWorkspaceFolder is the launch argument naming the workspace scope.
const KeyWorkspaceFolder = "workspaceFolder"

type frontend struct {
	server *Server
	w      io.Writer
	r      *bufio.Reader
	log    *logger.Logger

	writeMu sync.Mutex
	seq     int

	terminateOnce sync.Once
	launches      sync.WaitGroup
}

func newFrontend(s *Server, w io.Writer, r *bufio.Reader, log *logger.Logger) *frontend {
	return &frontend{server: s, w: w, r: r, log: log}
}

func (f *frontend) run(ctx context.Context) {
	for {
		msg, err := dap.ReadProtocolMessage(f.r)
		if err != nil {
			var fieldErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &fieldErr) {
				f.log.Warn("unsupported request", "command", fieldErr.FieldValue)
				f.sendError(fieldErr.Seq, fieldErr.FieldValue, fmt.Sprintf("%s is not supported", fieldErr.FieldValue))
				continue
			}
			if !utils.IsConnectionClosedError(err) {
				f.log.Error("error reading client message", "err", err)
			}
			return
		}

		switch req := msg.(type) {
		case *dap.InitializeRequest:
			f.onInitialize(req)
		case *dap.LaunchRequest:
			f.onLaunch(ctx, req)
		case *dap.AttachRequest:
			f.sendError(req.Seq, req.Command, "the pythoncpp debugger only supports launch")
			f.terminate()
		case *dap.ConfigurationDoneRequest:
			f.send(&dap.ConfigurationDoneResponse{Response: f.response(req.Request)})
		case *dap.TerminateRequest:
			f.send(&dap.TerminateResponse{Response: f.response(req.Request)})
			f.terminate()
		case *dap.DisconnectRequest:
			f.send(&dap.DisconnectResponse{Response: f.response(req.Request)})
			return
		case dap.RequestMessage:
			r := req.GetRequest()
			f.sendError(r.Seq, r.Command, fmt.Sprintf("%s is not supported", r.Command))
		default:
			f.log.Debug("ignoring message", "type", fmt.Sprintf("%T", msg))
		}
	}
}

func (f *frontend) onInitialize(req *dap.InitializeRequest) {
	f.log.Info("initialize", "client", req.Arguments.ClientID, "adapter", req.Arguments.AdapterID)
	f.send(&dap.InitializeResponse{
		Response: f.response(req.Request),
		Body: dap.Capabilities{
			SupportsConfigurationDoneRequest: true,
			SupportsTerminateRequest:         true,
		},
	})
	f.send(&dap.InitializedEvent{Event: f.event("initialized")})
}

func (f *frontend) onLaunch(ctx context.Context, req *dap.LaunchRequest) {
	args, err := lc.DecodeLaunchRequest(req.Arguments)
	if err != nil {
		f.sendError(req.Seq, req.Command, err.Error())
		f.terminate()
		return
	}

	scope := f.server.Workspace
	if ws := gjson.GetBytes(req.Arguments, KeyWorkspaceFolder); ws.Exists() {
		scope = ws.String()
	}

	f.send(&dap.LaunchResponse{Response: f.response(req.Request)})

	f.launches.Add(1)
	go func() {
		defer f.launches.Done()
		// Ends with ShowError on failure, which terminates the front-end
		res, err := f.server.Launcher.Launch(ctx, orchestrator.Request{
			Scope:                   scope,
			Launch:                  args,
			Notifier:                f,
			OnManagedStartRequested: f.terminate,
		})
		if err != nil {
			f.terminate()
			return
		}
		f.server.track(res)
	}()
}

// ShowError reports a failed launch to the IDE.
func (f *frontend) ShowError(message string) {
	f.output("important", message)
}

// ShowWarning reports a non fatal problem to the IDE.
func (f *frontend) ShowWarning(message string) {
	f.output("console", message)
}

func (f *frontend) output(category, message string) {
	f.send(&dap.OutputEvent{
		Event: f.event("output"),
		Body:  dap.OutputEventBody{Category: category, Output: message + "\n"},
	})
}

// terminate ends the front-end session in the IDE, at most once.
func (f *frontend) terminate() {
	f.terminateOnce.Do(func() {
		f.send(&dap.TerminatedEvent{Event: f.event("terminated")})
	})
}

func (f *frontend) sendError(requestSeq int, command, message string) {
	f.send(&dap.ErrorResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Type: "response"},
			RequestSeq:      requestSeq,
			Command:         command,
			Success:         false,
			Message:         message,
		},
	})
}

func (f *frontend) response(req dap.Request) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		RequestSeq:      req.Seq,
		Command:         req.Command,
		Success:         true,
	}
}

func (f *frontend) event(name string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Type: "event"},
		Event:           name,
	}
}

// send numbers m and writes it; seqs reach the wire in order.
func (f *frontend) send(m dap.Message) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.seq++
	switch m := m.(type) {
	case dap.ResponseMessage:
		m.GetResponse().Seq = f.seq
	case dap.EventMessage:
		m.GetEvent().Seq = f.seq
	}
	if err := dap.WriteProtocolMessage(f.w, m); err != nil && !utils.IsConnectionClosedError(err) {
		f.log.Warn("failed to send message to client", "err", err)
	}
}
