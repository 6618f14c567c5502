package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/resolver"
)

func TestDefaultVariant(t *testing.T) {
	configs, err := Configurations(VariantDefault, "python", "linux")
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, lc.DebugType, configs[0].Type())
	assert.Equal(t, lc.DefaultGDBAttach, configs[0]["cppConfig"])

	configs, err = Configurations(VariantDefault, "python", "windows")
	require.NoError(t, err)
	assert.Equal(t, lc.DefaultWinAttach, configs[0]["cppConfig"])
}

func TestNamedVariantsResolve(t *testing.T) {
	for _, variant := range []Variant{VariantWindows, VariantGDB, VariantCodeLLDB} {
		t.Run(string(variant), func(t *testing.T) {
			configs, err := Configurations(variant, "/usr/bin/python3", "linux")
			require.NoError(t, err)
			require.Len(t, configs, 3)

			// The generated entries must work together
			req, err := lc.LaunchRequestFromConfig(configs[0])
			require.NoError(t, err)
			r := resolver.New(lc.NewMemoryStore("/work", configs[1:]...), nil)
			pair, err := r.Resolve(t.Context(), req, "/work")
			require.NoError(t, err)
			assert.Equal(t, "python", pair.Managed.Type())
			assert.Equal(t, configs[1].Type(), pair.Native.Type())
		})
	}
}

func TestUnknownVariant(t *testing.T) {
	_, err := Configurations("vim", "python", "linux")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestWriteCreatesLaunchFile(t *testing.T) {
	scope := t.TempDir()
	configs, err := Configurations(VariantGDB, "/usr/bin/python3", "linux")
	require.NoError(t, err)

	added, err := Write(scope, configs)
	require.NoError(t, err)
	assert.Equal(t, []string{FrontendName, "(gdb) Attach", "Python: Current File"}, added)

	stored, err := lc.ReadLaunchFile(scope)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "cppdbg", stored[1].Type())

	// Writing again adds nothing
	added, err = Write(scope, configs)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestWriteKeepsExistingEntries(t *testing.T) {
	scope := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(scope, ".vscode"), 0o755))
	existing := `{
    // user entries
    "version": "0.2.0",
    "configurations": [
        {"name": "Run tests", "type": "python", "request": "launch", "module": "pytest"}
    ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(scope, lc.LaunchFile), []byte(existing), 0o644))

	configs, err := Configurations(VariantDefault, "python", "linux")
	require.NoError(t, err)
	_, err = Write(scope, configs)
	require.NoError(t, err)

	stored, err := lc.ReadLaunchFile(scope)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Run tests", stored[0].Name())
	assert.Equal(t, FrontendName, stored[1].Name())
}

func TestChoices(t *testing.T) {
	choices := Choices()
	require.Len(t, choices, 4)
	assert.Equal(t, "Default", choices[0].Description)
	assert.Equal(t, VariantCodeLLDB, choices[3].Variant)
}
