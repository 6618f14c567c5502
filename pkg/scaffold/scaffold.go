// Package scaffold creates starter pythoncpp entries in launch.json.
package scaffold

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/resolver"
)

// Variant selects which set of configurations to create.
type Variant string

const (
	VariantDefault  Variant = "default"
	VariantWindows  Variant = "windows"
	VariantGDB      Variant = "gdb"
	VariantCodeLLDB Variant = "codelldb"
)

// ErrUnknownVariant is returned for a variant not listed in Choices.
var ErrUnknownVariant = errors.New("unknown configuration variant")

// FrontendName is the name of the generated pythoncpp entry.
const FrontendName = "Python C++ Debugger"

// Choice is a menu entry for picking a variant.
type Choice struct {
	Variant     Variant
	Label       string
	Description string
}

// Choices lists the variants in menu order.
func Choices() []Choice {
	return []Choice{
		{VariantDefault, FrontendName, "Default"},
		{VariantWindows, FrontendName, "Custom: Windows"},
		{VariantGDB, FrontendName, "Custom: GDB"},
		{VariantCodeLLDB, FrontendName, "Custom: CodeLLDB"},
	}
}

// Configurations returns the launch.json entries for variant. The default
// variant is a single pythoncpp entry using the built-in configurations;
// the others also add the Python and native entries it refers to by name.
func Configurations(variant Variant, pythonPath, goos string) ([]lc.Config, error) {
	var native lc.Config
	switch variant {
	case VariantDefault, "":
		return []lc.Config{{
			lc.KeyName:     FrontendName,
			lc.KeyType:     lc.DebugType,
			lc.KeyRequest:  "launch",
			"pythonConfig": lc.SelectDefault,
			"cppConfig":    resolver.DefaultCppVariant(goos),
		}}, nil
	case VariantWindows:
		native = resolver.WinAttachConfig()
	case VariantGDB:
		native = resolver.GDBAttachConfig(pythonPath)
		native["miDebuggerPath"] = "/path/to/gdb or remove this attribute for the path to be found automatically"
	case VariantCodeLLDB:
		native = resolver.CodeLLDBAttachConfig()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownVariant, variant)
	}

	python := resolver.DefaultPythonConfig()
	front := lc.Config{
		lc.KeyName:         FrontendName,
		lc.KeyType:         lc.DebugType,
		lc.KeyRequest:      "launch",
		"pythonLaunchName": python.Name(),
		"cppAttachName":    native.Name(),
	}
	return []lc.Config{front, native, python}, nil
}

const emptyLaunchFile = `{"version": "0.2.0", "configurations": []}`

// Write adds configs to <scope>/.vscode/launch.json, creating it when
// needed. Entries whose name already exists are left alone. It returns
// the names that were added.
func Write(scope string, configs []lc.Config) ([]string, error) {
	log := logger.For("Scaffold")
	path := filepath.Join(scope, lc.LaunchFile)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = []byte(emptyLaunchFile)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// sjson needs plain JSON; comments do not survive the rewrite
	doc := string(jsonc.ToJSON(data))
	if !gjson.Valid(doc) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	if !gjson.Get(doc, "configurations").IsArray() {
		if doc, err = sjson.SetRaw(doc, "configurations", "[]"); err != nil {
			return nil, err
		}
	}

	var added []string
	for _, cfg := range configs {
		name := cfg.Name()
		if hasConfiguration(doc, name) {
			log.Info("configuration already present", "name", name)
			continue
		}
		raw, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode configuration %q: %w", name, err)
		}
		if doc, err = sjson.SetRaw(doc, "configurations.-1", string(raw)); err != nil {
			return nil, fmt.Errorf("add configuration %q: %w", name, err)
		}
		added = append(added, name)
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	out := pretty.PrettyOptions([]byte(doc), &pretty.Options{Indent: "    ", Width: 80})
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	log.Info("updated launch configurations", "path", path, "added", added)
	return added, nil
}

func hasConfiguration(doc, name string) bool {
	found := false
	gjson.Get(doc, "configurations").ForEach(func(_, v gjson.Result) bool {
		if v.Get(lc.KeyName).String() == name {
			found = true
			return false
		}
		return true
	})
	return found
}
