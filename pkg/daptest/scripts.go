package daptest

import (
	"encoding/json"

	"github.com/google/go-dap"
)

// ThreadID is the thread fake adapters report as stopped.
const ThreadID = 1

// Debugpy scripts a to behave like debugpy for a launch: it announces
// initialized after launch, stops on entry when asked and answers
// pydevdSystemInfo with pid.
func Debugpy(a *Adapter, pid int) {
	var stopOnEntry bool

	a.Handle("initialize", func(*Adapter, Message) (any, error) {
		return dap.Capabilities{SupportsConfigurationDoneRequest: true}, nil
	})
	a.Handle("launch", func(a *Adapter, req Message) (any, error) {
		var args struct {
			StopOnEntry bool `json:"stopOnEntry"`
		}
		_ = json.Unmarshal(req.Arguments, &args)
		stopOnEntry = args.StopOnEntry
		return nil, a.SendEvent("initialized", nil)
	})
	a.Handle("configurationDone", func(a *Adapter, _ Message) (any, error) {
		if stopOnEntry {
			return nil, a.SendEvent("stopped", map[string]any{"reason": "entry", "threadId": ThreadID})
		}
		return nil, nil
	})
	a.Handle("pydevdSystemInfo", func(*Adapter, Message) (any, error) {
		return map[string]any{
			"python":   map[string]any{"version": "3.11.4"},
			"platform": map[string]any{"name": "linux"},
			"process":  map[string]any{"pid": pid, "executable": "/usr/bin/python3"},
		}, nil
	})
	a.Handle("threads", func(*Adapter, Message) (any, error) {
		return map[string]any{"threads": []map[string]any{{"id": ThreadID, "name": "MainThread"}}}, nil
	})
	a.Handle("continue", func(*Adapter, Message) (any, error) {
		return map[string]any{"allThreadsContinued": true}, nil
	})
}

// Native scripts a to behave like a native debugger accepting attach.
func Native(a *Adapter) {
	a.Handle("initialize", func(*Adapter, Message) (any, error) {
		return dap.Capabilities{SupportsConfigurationDoneRequest: true}, nil
	})
	a.Handle("attach", func(a *Adapter, _ Message) (any, error) {
		return nil, a.SendEvent("initialized", nil)
	})
}
