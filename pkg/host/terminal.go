package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"pycppdbg/pkg/dapclient"
	"pycppdbg/pkg/logger"
)

// RunInTerminalArgs are the arguments of a runInTerminal reverse request.
type RunInTerminalArgs struct {
	Kind  string            `json:"kind,omitempty"`
	Title string            `json:"title,omitempty"`
	Cwd   string            `json:"cwd"`
	Args  []string          `json:"args"`
	Env   map[string]string `json:"env,omitempty"`
}

// TerminalRunner starts the command of a runInTerminal request and
// returns its pid.
type TerminalRunner func(args RunInTerminalArgs) (int, error)

// RunLocal starts the command as a child process sharing our stdio.
func RunLocal(args RunInTerminalArgs) (int, error) {
	if len(args.Args) == 0 {
		return 0, errors.New("runInTerminal: empty command")
	}
	cmd := exec.Command(args.Args[0], args.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if args.Cwd != "" {
		cmd.Dir = filepath.Clean(args.Cwd)
	}
	if len(args.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range args.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("runInTerminal: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, nil
}

func (h *AdapterHost) reverseHandler(scope string) dapclient.ReverseHandler {
	run := h.Terminal
	if run == nil {
		run = RunLocal
	}
	return func(command string, raw json.RawMessage) (any, error) {
		switch command {
		case "runInTerminal":
			var args RunInTerminalArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode runInTerminal arguments: %w", err)
			}
			if args.Cwd == "" {
				args.Cwd = scope
			}
			pid, err := run(args)
			if err != nil {
				return nil, err
			}
			logger.For(h.Label).Info("started debuggee in terminal", "pid", pid, "args", args.Args)
			return map[string]any{"processId": pid}, nil
		default:
			return nil, fmt.Errorf("%s is not supported", command)
		}
	}
}
