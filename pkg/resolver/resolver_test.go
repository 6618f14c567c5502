package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/pyexec"
)

const scope = "/ws"

func newTestResolver(goos string, configs ...lc.Config) *Resolver {
	r := New(lc.NewMemoryStore(scope, configs...), pyexec.Static("/usr/bin/python3"))
	r.GOOS = goos
	return r
}

// Scenario A
func TestResolveDefaultsOnLinux(t *testing.T) {
	r := newTestResolver("linux")
	pair, err := r.Resolve(context.Background(), &lc.LaunchRequest{
		PythonConfig: lc.SelectDefault,
		CppConfig:    lc.DefaultGDBAttach,
	}, scope)
	require.NoError(t, err)

	assert.Equal(t, "python", pair.Managed.Type())
	assert.Equal(t, "launch", pair.Managed.Request())
	assert.Equal(t, "${file}", pair.Managed.String(lc.KeyProgram))

	assert.Equal(t, "cppdbg", pair.Native.Type())
	assert.Equal(t, "gdb", pair.Native.String("MIMode"))
	assert.Equal(t, "/usr/bin/python3", pair.Native.String(lc.KeyProgram))
	assert.Equal(t, "", pair.Native[lc.KeyProcessID])
}

func TestHostDefaultVariant(t *testing.T) {
	tests := []struct {
		goos     string
		wantType string
		pidKey   string
	}{
		{goos: "windows", wantType: EngineCppvsdbg, pidKey: lc.KeyProcessID},
		{goos: "linux", wantType: EngineCppdbg, pidKey: lc.KeyProcessID},
		{goos: "darwin", wantType: EngineCppdbg, pidKey: lc.KeyProcessID},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			pair, err := newTestResolver(tt.goos).Resolve(context.Background(), &lc.LaunchRequest{
				PythonConfig: lc.SelectDefault,
				CppConfig:    lc.SelectDefault,
			}, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, pair.Native.Type())
			assert.Equal(t, "", pair.Native[tt.pidKey])
		})
	}
}

func TestCodeLLDBVariantUsesPid(t *testing.T) {
	pair, err := newTestResolver("darwin").Resolve(context.Background(), &lc.LaunchRequest{
		PythonConfig: lc.SelectDefault,
		CppConfig:    lc.DefaultCodeLLDBAttach,
	}, scope)
	require.NoError(t, err)
	assert.Equal(t, EngineLLDB, pair.Native.Type())
	assert.Equal(t, "", pair.Native[lc.KeyPID])
	assert.NotContains(t, pair.Native, lc.KeyProcessID)
}

// Scenario B
func TestCustomWithoutNameIsAmbiguous(t *testing.T) {
	_, err := newTestResolver("linux").Resolve(context.Background(), &lc.LaunchRequest{
		PythonConfig: lc.SelectDefault,
		CppConfig:    lc.SelectCustom,
	}, scope)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousConfig)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, SideNative, rerr.Side)
	assert.Contains(t, rerr.Message, "cppAttachName")
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   lc.LaunchRequest
		scope string
		want  error
	}{
		{name: "no workspace", req: lc.LaunchRequest{PythonConfig: "default", CppConfig: "default"}, scope: "", want: ErrNoWorkspaceFolder},
		{name: "python manual without name", req: lc.LaunchRequest{PythonConfig: "manual", CppConfig: "default"}, scope: scope, want: ErrAmbiguousConfig},
		{name: "python unset", req: lc.LaunchRequest{CppConfig: "default"}, scope: scope, want: ErrAmbiguousConfig},
		{name: "unknown cpp sentinel", req: lc.LaunchRequest{PythonConfig: "default", CppConfig: "default (vim) Attach"}, scope: scope, want: ErrAmbiguousConfig},
		{name: "missing python name", req: lc.LaunchRequest{PythonLaunchName: "nope", CppConfig: "default"}, scope: scope, want: ErrMissingNamedConfig},
		{name: "missing cpp name", req: lc.LaunchRequest{PythonConfig: "default", CppAttachName: "nope"}, scope: scope, want: ErrMissingNamedConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestResolver("linux").Resolve(context.Background(), &tt.req, tt.scope)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNamedConfigs(t *testing.T) {
	py := lc.Config{"name": "Py", "type": "python", "request": "launch", "program": "app.py"}
	gdb := lc.Config{"name": "(gdb) Attach", "type": "cppdbg", "request": "attach", "processId": "${command:pickProcess}"}
	lldb := lc.Config{"name": "(lldb) Attach", "type": "lldb", "request": "attach"}
	r := newTestResolver("linux", py, gdb, lldb)

	pair, err := r.Resolve(context.Background(), &lc.LaunchRequest{
		PythonConfig:     lc.SelectDefault, // by-name outranks the default
		PythonLaunchName: "Py",
		CppAttachName:    "(gdb) Attach",
	}, scope)
	require.NoError(t, err)
	assert.Equal(t, "app.py", pair.Managed.String(lc.KeyProgram))
	assert.Equal(t, "/usr/bin/python3", pair.Native.String(lc.KeyProgram))
	assert.Equal(t, "", pair.Native[lc.KeyProcessID])

	pair, err = r.Resolve(context.Background(), &lc.LaunchRequest{
		PythonLaunchName: "Py",
		CppAttachName:    "(lldb) Attach",
	}, scope)
	require.NoError(t, err)
	assert.NotContains(t, pair.Native, lc.KeyProgram, "lldb attaches without a program")
	assert.Equal(t, "", pair.Native[lc.KeyPID])

	// the store itself is untouched
	stored, _, _ := r.Store.Lookup("(gdb) Attach", scope)
	assert.Equal(t, "${command:pickProcess}", stored[lc.KeyProcessID])
	assert.NotContains(t, stored, lc.KeyProgram)
}

func TestInlinePidIsCleared(t *testing.T) {
	pair, err := newTestResolver("linux").Resolve(context.Background(), &lc.LaunchRequest{
		PythonConfig:    lc.SelectDefault,
		EntireCppConfig: lc.Config{"type": "cppdbg", "request": "attach", "processId": float64(1)},
	}, scope)
	require.NoError(t, err)
	assert.Equal(t, "", pair.Native[lc.KeyProcessID])
}

func TestEmptyInlineConfigIsSupplied(t *testing.T) {
	req, err := lc.DecodeLaunchRequest([]byte(`{
		"entirePythonConfig": {},
		"pythonConfig": "default",
		"entireCppConfig": {},
		"cppConfig": "default (gdb) Attach"
	}`))
	require.NoError(t, err)

	pair, err := newTestResolver("linux").Resolve(context.Background(), req, scope)
	require.NoError(t, err)
	assert.Equal(t, lc.Config{}, pair.Managed)
	assert.Equal(t, lc.Config{}, pair.Native)
}

func TestPythonPathPerScope(t *testing.T) {
	r := newTestResolver("linux", lc.Config{"name": "(gdb) Attach", "type": "cppdbg", "request": "attach"})
	r.Store.(*lc.MemoryStore).Set("/other", lc.Config{"name": "(gdb) Attach", "type": "cppdbg", "request": "attach"})
	r.PythonFor = func(s string) pyexec.Resolver { return pyexec.Static(s + "/venv/bin/python") }

	for _, s := range []string{scope, "/other"} {
		pair, err := r.Resolve(context.Background(), &lc.LaunchRequest{
			PythonConfig: lc.SelectDefault,
			CppConfig:    lc.DefaultGDBAttach,
		}, s)
		require.NoError(t, err)
		assert.Equal(t, s+"/venv/bin/python", pair.Native.String(lc.KeyProgram))

		pair, err = r.Resolve(context.Background(), &lc.LaunchRequest{
			PythonConfig:  lc.SelectDefault,
			CppAttachName: "(gdb) Attach",
		}, s)
		require.NoError(t, err)
		assert.Equal(t, s+"/venv/bin/python", pair.Native.String(lc.KeyProgram))
	}
}

func genConfig(t *rapid.T, label string) lc.Config {
	keys := rapid.SliceOfN(rapid.StringMatching(`k[a-z]{0,5}`), 1, 5).Draw(t, label+"-keys")
	cfg := lc.Config{}
	for i, k := range keys {
		cfg[k] = rapid.OneOf(
			rapid.Just[any]("${file}"),
			rapid.Map(rapid.String(), func(s string) any { return s }),
			rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		).Draw(t, label+"-val-"+string(rune('a'+i)))
	}
	return cfg
}

func genRequest(t *rapid.T) *lc.LaunchRequest {
	selectors := []string{"", lc.SelectDefault, lc.SelectCustom, lc.SelectManual,
		lc.DefaultWinAttach, lc.DefaultGDBAttach, lc.DefaultCodeLLDBAttach, "bogus"}
	names := []string{"", "Py", "(gdb) Attach", "missing"}
	req := &lc.LaunchRequest{
		PythonConfig:     rapid.SampledFrom(selectors).Draw(t, "pythonConfig"),
		PythonLaunchName: rapid.SampledFrom(names).Draw(t, "pythonLaunchName"),
		CppConfig:        rapid.SampledFrom(selectors).Draw(t, "cppConfig"),
		CppAttachName:    rapid.SampledFrom(names).Draw(t, "cppAttachName"),
		OptimizedLaunch:  rapid.Bool().Draw(t, "optimized"),
	}
	if rapid.Bool().Draw(t, "inlinePython") {
		req.EntirePythonConfig = genConfig(t, "py")
	}
	if rapid.Bool().Draw(t, "inlineCpp") {
		req.EntireCppConfig = genConfig(t, "cpp")
	}
	return req
}

func propertyResolver() *Resolver {
	return newTestResolver("linux",
		lc.Config{"name": "Py", "type": "python", "request": "launch"},
		lc.Config{"name": "(gdb) Attach", "type": "cppdbg", "request": "attach"},
	)
}

func TestPropertyInlineIsVerbatim(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := genRequest(t)
		req.EntirePythonConfig = genConfig(t, "py-inline")
		req.EntireCppConfig = genConfig(t, "cpp-inline")

		pair, err := propertyResolver().Resolve(context.Background(), req, scope)
		if err != nil {
			t.Fatalf("inline configs must always resolve: %v", err)
		}
		assert.Equal(t, req.EntirePythonConfig, pair.Managed)
		assert.Equal(t, req.EntireCppConfig, pair.Native)
	})
}

func TestPropertyNoSourceIsAmbiguous(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := genRequest(t)
		req.EntirePythonConfig = nil
		req.PythonLaunchName = ""
		req.PythonConfig = rapid.SampledFrom([]string{"", lc.SelectCustom, lc.SelectManual, "bogus"}).Draw(t, "unrecognized")

		_, err := propertyResolver().Resolve(context.Background(), req, scope)
		if !errors.Is(err, ErrAmbiguousConfig) {
			t.Fatalf("expected ambiguous config, got %v", err)
		}
	})
}

func TestPropertyNativePidEmptyAndIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := genRequest(t)
		r := propertyResolver()

		first, err1 := r.Resolve(context.Background(), req, scope)
		second, err2 := r.Resolve(context.Background(), req, scope)
		assert.Equal(t, err1, err2)
		assert.Equal(t, first, second)
		if err1 != nil {
			return
		}
		if pid := first.Native.ProcessID(); pid != 0 {
			t.Fatalf("native pid pre-filled: %d", pid)
		}
		for _, key := range []string{lc.KeyProcessID, lc.KeyPID} {
			if v, ok := first.Native[key]; ok && v != "" {
				t.Fatalf("native %s not empty: %v", key, v)
			}
		}
	})
}
