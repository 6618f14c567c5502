package launchconfig

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Variables carries the values ${...} placeholders expand to.
type Variables struct {
	File            string
	WorkspaceFolder string
	Cwd             string
	Env             func(string) string
}

// Expand returns a copy of c with placeholders in every string value
// substituted. Unknown variables are left untouched so the adapter can
// report them.
func (v Variables) Expand(c Config) Config {
	out := c.Clone()
	for k, val := range out {
		out[k] = v.expandValue(val)
	}
	return out
}

func (v Variables) expandValue(val any) any {
	switch t := val.(type) {
	case string:
		return v.ExpandString(t)
	case map[string]any:
		for k, e := range t {
			t[k] = v.expandValue(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = v.expandValue(e)
		}
		return t
	default:
		return val
	}
}

// ExpandString substitutes placeholders in s.
func (v Variables) ExpandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if value, ok := v.lookup(name); ok {
			return value
		}
		return m
	})
}

func (v Variables) lookup(name string) (string, bool) {
	env := v.Env
	if env == nil {
		env = os.Getenv
	}
	switch name {
	case "file":
		return v.File, v.File != ""
	case "fileBasename":
		return filepath.Base(v.File), v.File != ""
	case "fileDirname":
		return filepath.Dir(v.File), v.File != ""
	case "workspaceFolder", "workspaceRoot":
		return v.WorkspaceFolder, v.WorkspaceFolder != ""
	case "workspaceFolderBasename":
		return filepath.Base(v.WorkspaceFolder), v.WorkspaceFolder != ""
	case "cwd":
		return v.Cwd, v.Cwd != ""
	}
	if strings.HasPrefix(name, "env:") {
		return env(strings.TrimPrefix(name, "env:")), true
	}
	return "", false
}
