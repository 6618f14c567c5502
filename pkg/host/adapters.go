package host

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"

	"pycppdbg/pkg/dapclient"
	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
)

// KeyDebugServer names a config key holding the port of an adapter that is
// already listening, as in VS Code's debugServer attribute.
const KeyDebugServer = "debugServer"

// Adapter describes how to reach a debug adapter: either a command that
// speaks DAP on stdio or the address of one in server mode.
type Adapter struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Address string   `mapstructure:"address"`
	Env     []string `mapstructure:"env"`
}

// Adapters maps a configuration type to its adapter.
type Adapters map[string]Adapter

// DefaultAdapters is the registry used when nothing is configured.
// pythonPath runs debugpy's adapter module.
func DefaultAdapters(pythonPath string) Adapters {
	debugpy := Adapter{Command: pythonPath, Args: []string{"-m", "debugpy.adapter"}}
	return Adapters{
		"python":   debugpy,
		"debugpy":  debugpy,
		"cppdbg":   {Command: "OpenDebugAD7"},
		"cppvsdbg": {Command: "vsdbg", Args: []string{"--interpreter=vscode"}},
		"lldb":     {Command: "lldb-dap"},
	}
}

// Merge returns a copy of a with the entries of override applied. Empty
// fields of an override keep the existing value.
func (a Adapters) Merge(override Adapters) Adapters {
	out := make(Adapters, len(a)+len(override))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range override {
		base := out[k]
		if v.Command != "" || v.Address != "" {
			base.Command, base.Args, base.Address = v.Command, v.Args, v.Address
		}
		if len(v.Env) > 0 {
			base.Env = v.Env
		}
		out[k] = base
	}
	return out
}

// For returns the adapter for cfg, honoring a debugServer port.
func (a Adapters) For(cfg lc.Config) (Adapter, error) {
	if port := debugServerPort(cfg); port > 0 {
		return Adapter{Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(port))}, nil
	}
	adapter, ok := a[cfg.Type()]
	if !ok || (adapter.Command == "" && adapter.Address == "") {
		return Adapter{}, fmt.Errorf("%w %q", ErrNoAdapter, cfg.Type())
	}
	return adapter, nil
}

func debugServerPort(cfg lc.Config) int {
	switch v := cfg[KeyDebugServer].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Connect opens the DAP transport to an adapter.
func Connect(ctx context.Context, adapter Adapter) (io.ReadWriteCloser, error) {
	if adapter.Address != "" {
		return dapclient.DialSocket(ctx, adapter.Address)
	}

	logger.For("Adapter").Info("starting debug adapter", "command", adapter.Command, "args", adapter.Args)
	// Not CommandContext: the adapter must outlive the startup context.
	cmd := exec.Command(adapter.Command, adapter.Args...)
	cmd.Stderr = os.Stderr
	if len(adapter.Env) > 0 {
		cmd.Env = append(os.Environ(), adapter.Env...)
	}
	return dapclient.StartProcess(cmd)
}
