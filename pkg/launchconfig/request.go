package launchconfig

import (
	"encoding/json"
	"fmt"
)

// DebugType is the debug type the IDE uses for the combined session.
const DebugType = "pythoncpp"

// Selector values for PythonConfig / CppConfig.
const (
	SelectDefault = "default"
	SelectCustom  = "custom"
	SelectManual  = "manual"

	DefaultWinAttach      = "default (win) Attach"
	DefaultGDBAttach      = "default (gdb) Attach"
	DefaultCodeLLDBAttach = "default (codelldb) Attach"
)

// LaunchRequest is the "pythoncpp" launch record. For each side it selects
// where the real configuration comes from: an inline copy, a reference to
// another entry of launch.json, or a built-in default.
type LaunchRequest struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Request string `json:"request,omitempty"`

	EntirePythonConfig Config `json:"entirePythonConfig,omitempty"`
	PythonConfig       string `json:"pythonConfig,omitempty"`
	PythonLaunchName   string `json:"pythonLaunchName,omitempty"`

	EntireCppConfig Config `json:"entireCppConfig,omitempty"`
	CppConfig       string `json:"cppConfig,omitempty"`
	CppAttachName   string `json:"cppAttachName,omitempty"`

	// OptimizedLaunch skips the settling delay before resuming Python.
	OptimizedLaunch bool `json:"optimizedLaunch,omitempty"`

	// File is the document ${file} expands to. Set by the IDE or by the
	// "debug <file>" command; not part of launch.json.
	File string `json:"file,omitempty"`
}

// IsEmpty reports whether the record carries no identifying fields at all,
// which is what the IDE sends when launch.json is missing.
func (r *LaunchRequest) IsEmpty() bool {
	return r.Type == "" && r.Request == "" && r.Name == ""
}

// DecodeLaunchRequest parses launch arguments sent by the IDE.
func DecodeLaunchRequest(raw []byte) (*LaunchRequest, error) {
	var req LaunchRequest
	if len(raw) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode launch request: %w", err)
	}
	return &req, nil
}

// LaunchRequestFromConfig converts a launch.json entry of type pythoncpp.
func LaunchRequestFromConfig(c Config) (*LaunchRequest, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode configuration %q: %w", c.Name(), err)
	}
	return DecodeLaunchRequest(raw)
}
