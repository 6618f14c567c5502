package pyexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noPath(string) (string, error) { return "", errors.New("not found") }

func noEnv(string) string { return "" }

func TestFallback(t *testing.T) {
	r := &WorkspaceResolver{Getenv: noEnv, LookPath: noPath}
	assert.Equal(t, Fallback, r.Resolve(context.Background(), ""))
	assert.Equal(t, Fallback, Static("").Resolve(context.Background(), ""))
	assert.Equal(t, "/opt/py", Static("/opt/py").Resolve(context.Background(), ""))
}

func TestOverrideWins(t *testing.T) {
	r := &WorkspaceResolver{Override: "${workspaceFolder}/.venv/bin/python", Workspace: "/ws", Getenv: noEnv, LookPath: noPath}
	assert.Equal(t, "/ws/.venv/bin/python", r.Resolve(context.Background(), ""))
}

func TestWorkspaceSettings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".vscode"), 0o755))
	settings := `{
		// interpreter picked in the IDE
		"python.defaultInterpreterPath": "/usr/bin/python3.12",
		"python.pythonPath": "/usr/bin/python2",
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vscode", "settings.json"), []byte(settings), 0o644))

	r := &WorkspaceResolver{Workspace: dir, Getenv: noEnv, LookPath: noPath}
	assert.Equal(t, "/usr/bin/python3.12", r.Resolve(context.Background(), ""))
}

func TestVirtualEnvThenPath(t *testing.T) {
	r := &WorkspaceResolver{
		Getenv:   func(k string) string { return map[string]string{"VIRTUAL_ENV": "/venv"}[k] },
		LookPath: noPath,
	}
	assert.Equal(t, filepath.Join("/venv", venvBin(), interpreterName()), r.Resolve(context.Background(), ""))

	r = &WorkspaceResolver{
		Getenv: noEnv,
		LookPath: func(name string) (string, error) {
			if name == "python3" {
				return "/usr/local/bin/python3", nil
			}
			return "", errors.New("not found")
		},
	}
	assert.Equal(t, "/usr/local/bin/python3", r.Resolve(context.Background(), ""))
}
