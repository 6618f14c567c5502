package resolver

import (
	"runtime"

	lc "pycppdbg/pkg/launchconfig"
)

// Native debug adapter types.
const (
	EngineCppdbg   = "cppdbg"
	EngineCppvsdbg = "cppvsdbg"
	EngineLLDB     = "lldb"
)

// DefaultCppVariant is the native default picked for a host OS when the
// request only says "default". The lldb variant is never chosen here.
func DefaultCppVariant(goos string) string {
	if goos == "windows" {
		return lc.DefaultWinAttach
	}
	return lc.DefaultGDBAttach
}

// HostCppVariant is DefaultCppVariant for the running OS.
func HostCppVariant() string {
	return DefaultCppVariant(runtime.GOOS)
}

// ProcessIDKey is the key the engine reads the attach pid from.
func ProcessIDKey(engine string) string {
	if engine == EngineLLDB {
		return lc.KeyPID
	}
	return lc.KeyProcessID
}

// RequiresProgram reports whether attaching needs an explicit program path.
func RequiresProgram(engine string) bool {
	return engine == EngineCppdbg
}

// DefaultPythonConfig runs the current file under debugpy.
func DefaultPythonConfig() lc.Config {
	return lc.Config{
		"name":    "Python: Current File",
		"type":    "python",
		"request": "launch",
		"program": "${file}",
		"console": "integratedTerminal",
	}
}

// WinAttachConfig attaches the Visual Studio Windows debugger.
func WinAttachConfig() lc.Config {
	return lc.Config{
		"name":      "(Windows) Attach",
		"type":      EngineCppvsdbg,
		"request":   "attach",
		"processId": "",
	}
}

// GDBAttachConfig attaches gdb through cpptools; program is the interpreter.
func GDBAttachConfig(pythonPath string) lc.Config {
	return lc.Config{
		"name":      "(gdb) Attach",
		"type":      EngineCppdbg,
		"request":   "attach",
		"program":   pythonPath,
		"processId": "",
		"MIMode":    "gdb",
		"setupCommands": []any{
			map[string]any{
				"description":    "Enable pretty-printing for gdb",
				"text":           "-enable-pretty-printing",
				"ignoreFailures": true,
			},
		},
	}
}

// CodeLLDBAttachConfig attaches CodeLLDB.
func CodeLLDBAttachConfig() lc.Config {
	return lc.Config{
		"name":    "(codelldb) Attach",
		"type":    EngineLLDB,
		"request": "attach",
		"pid":     "",
	}
}
