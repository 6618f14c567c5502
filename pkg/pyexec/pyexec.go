// Package pyexec finds the Python interpreter a workspace runs with. The
// native debugger needs it as the "program" of a gdb attach.
package pyexec

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
)

// Fallback is returned when nothing better is known.
const Fallback = "python"

// settingsKeys are looked up in .vscode/settings.json, newest first.
var settingsKeys = []string{
	`python\.defaultInterpreterPath`,
	`python\.pythonPath`,
}

// Resolver resolves the interpreter path.
type Resolver interface {
	Resolve(ctx context.Context, document string) string
}

// WorkspaceResolver checks, in order: an explicit override, the workspace
// settings, an active virtualenv, and finally PATH.
type WorkspaceResolver struct {
	// Override wins over everything when set (config "python_path").
	Override string
	// Workspace is the folder whose .vscode/settings.json is consulted.
	Workspace string

	// Getenv and LookPath are swapped in tests.
	Getenv   func(string) string
	LookPath func(string) (string, error)
}

// Resolve returns the interpreter for document (which may be empty).
func (r *WorkspaceResolver) Resolve(_ context.Context, document string) string {
	log := logger.For("PythonPath")
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if r.Override != "" {
		return r.expand(r.Override, document, getenv)
	}

	if p := r.fromSettings(); p != "" {
		p = r.expand(p, document, getenv)
		log.Debug("python path from workspace settings", "path", p)
		return p
	}

	if venv := getenv("VIRTUAL_ENV"); venv != "" {
		p := filepath.Join(venv, venvBin(), interpreterName())
		log.Debug("python path from virtualenv", "path", p)
		return p
	}

	for _, name := range []string{"python3", "python"} {
		if p, err := lookPath(name); err == nil {
			return p
		}
	}
	return Fallback
}

func (r *WorkspaceResolver) fromSettings() string {
	if r.Workspace == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(r.Workspace, ".vscode", "settings.json"))
	if err != nil {
		return ""
	}
	data = jsonc.ToJSON(data)
	for _, key := range settingsKeys {
		if v := gjson.GetBytes(data, key); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func (r *WorkspaceResolver) expand(p, document string, getenv func(string) string) string {
	vars := launchconfig.Variables{File: document, WorkspaceFolder: r.Workspace, Env: getenv}
	p = vars.ExpandString(p)
	if expanded, err := homedir.Expand(p); err == nil {
		p = expanded
	}
	return p
}

func venvBin() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}

func interpreterName() string {
	if runtime.GOOS == "windows" {
		return "python.exe"
	}
	return "python"
}

// ForScope returns the resolver for a workspace folder.
type ForScope func(scope string) Resolver

// Workspaces builds a WorkspaceResolver per folder, all sharing override.
func Workspaces(override string) ForScope {
	return func(scope string) Resolver {
		return &WorkspaceResolver{Override: override, Workspace: scope}
	}
}

// Static always returns the same path.
type Static string

// Resolve implements Resolver.
func (s Static) Resolve(context.Context, string) string {
	if s == "" {
		return Fallback
	}
	return string(s)
}
