package host

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pycppdbg/pkg/daptest"
	lc "pycppdbg/pkg/launchconfig"
)

// fakeHost returns a host whose every connection is served by a fresh
// fake adapter prepared by script.
func fakeHost(t *testing.T, script func(*daptest.Adapter)) (*AdapterHost, chan *daptest.Adapter) {
	t.Helper()
	adapters := make(chan *daptest.Adapter, 4)
	h := NewAdapterHost("Test", DefaultAdapters("python3"))
	h.Connect = func(context.Context, Adapter) (io.ReadWriteCloser, error) {
		conn, a := daptest.Pipe()
		script(a)
		a.Go()
		t.Cleanup(func() { _ = a.Close() })
		adapters <- a
		return conn, nil
	}
	return h, adapters
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func pythonLaunch() lc.Config {
	return lc.Config{
		"name":        "Python: Current File",
		"type":        "python",
		"request":     "launch",
		"program":     "${file}",
		"cwd":         "${workspaceFolder}",
		"stopOnEntry": true,
	}
}

func TestStartLaunchHandshake(t *testing.T) {
	h, adapters := fakeHost(t, func(a *daptest.Adapter) { daptest.Debugpy(a, 4242) })
	ctx := WithDocument(testContext(t), "/work/main.py")

	s, err := h.Start(ctx, "/work", pythonLaunch())
	require.NoError(t, err)
	defer s.Stop(ctx)

	a := <-adapters
	assert.Equal(t, []string{"initialize", "launch", "configurationDone"}, a.Commands())

	launch, ok := a.Request("launch")
	require.True(t, ok)
	var args map[string]any
	require.NoError(t, json.Unmarshal(launch.Arguments, &args))
	assert.Equal(t, "/work/main.py", args["program"])
	assert.Equal(t, "/work", args["cwd"])
	assert.Equal(t, "Python: Current File", s.Name())
	assert.NotEmpty(t, s.ID())
}

func TestCustomRequestAndResume(t *testing.T) {
	h, adapters := fakeHost(t, func(a *daptest.Adapter) { daptest.Debugpy(a, 4242) })
	ctx := testContext(t)

	s, err := h.Start(ctx, "/work", pythonLaunch())
	require.NoError(t, err)
	defer s.Stop(ctx)
	a := <-adapters

	body, err := s.CustomRequest(ctx, "pydevdSystemInfo", nil)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"pid":4242`)

	require.NoError(t, s.Resume(ctx))
	cont, ok := a.Request("continue")
	require.True(t, ok)
	assert.JSONEq(t, `{"threadId":1}`, string(cont.Arguments))
	_, askedThreads := a.Request("threads")
	assert.False(t, askedThreads)
}

func TestResumeFallsBackToThreads(t *testing.T) {
	h, adapters := fakeHost(t, func(a *daptest.Adapter) { daptest.Debugpy(a, 1) })
	ctx := testContext(t)

	cfg := pythonLaunch()
	cfg["stopOnEntry"] = false
	s, err := h.Start(ctx, "/work", cfg)
	require.NoError(t, err)
	defer s.Stop(ctx)
	a := <-adapters

	require.NoError(t, s.Resume(ctx))
	assert.Equal(t, []string{"initialize", "launch", "configurationDone", "threads", "continue"}, a.Commands())
}

func TestStartAttach(t *testing.T) {
	h, adapters := fakeHost(t, daptest.Native)
	ctx := testContext(t)

	s, err := h.Start(ctx, "/work", lc.Config{
		"name": "(gdb) Attach", "type": "cppdbg", "request": "attach", "processId": 4242,
	})
	require.NoError(t, err)
	defer s.Stop(ctx)

	a := <-adapters
	attach, ok := a.Request("attach")
	require.True(t, ok)
	assert.Contains(t, string(attach.Arguments), `"processId":4242`)
}

func TestStartInitializedBeforeAttach(t *testing.T) {
	// delve-style adapters announce initialized straight after answering
	// initialize, before any launch or attach arrives.
	h, adapters := fakeHost(t, func(a *daptest.Adapter) {
		a.Handle("initialize", func(a *daptest.Adapter, _ daptest.Message) (any, error) {
			go func() { _ = a.SendEvent("initialized", nil) }()
			return dap.Capabilities{SupportsConfigurationDoneRequest: true}, nil
		})
		a.Handle("attach", func(*daptest.Adapter, daptest.Message) (any, error) { return nil, nil })
	})

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s, err := h.Start(ctx, "/work", lc.Config{
			"name": "(gdb) Attach", "type": "cppdbg", "request": "attach", "processId": 4242,
		})
		require.NoError(t, err, "attempt %d", i)
		a := <-adapters
		assert.Equal(t, []string{"initialize", "attach", "configurationDone"}, a.Commands())
		require.NoError(t, s.Stop(ctx))
		cancel()
	}
}

func TestStartFailsWhenAttachRejected(t *testing.T) {
	h, _ := fakeHost(t, func(a *daptest.Adapter) {
		daptest.Native(a)
		a.Fail("attach", "Unable to attach: ptrace not permitted")
	})

	_, err := h.Start(testContext(t), "/work", lc.Config{"type": "cppdbg", "request": "attach", "processId": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ptrace not permitted")
}

func TestStartRejectsBadConfigs(t *testing.T) {
	h, _ := fakeHost(t, daptest.Native)
	ctx := testContext(t)

	_, err := h.Start(ctx, "/work", lc.Config{"type": "cppdbg", "request": "run"})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = h.Start(ctx, "/work", lc.Config{"type": "go", "request": "attach"})
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestStopDisconnects(t *testing.T) {
	h, adapters := fakeHost(t, func(a *daptest.Adapter) { daptest.Debugpy(a, 1) })
	ctx := testContext(t)

	s, err := h.Start(ctx, "/work", pythonLaunch())
	require.NoError(t, err)
	a := <-adapters

	require.NoError(t, s.Stop(ctx))
	select {
	case <-s.Done():
	default:
		t.Fatal("session not done after Stop")
	}

	disconnect, ok := a.Request("disconnect")
	require.True(t, ok)
	assert.JSONEq(t, `{"terminateDebuggee":true}`, string(disconnect.Arguments))
	assert.NoError(t, s.Stop(ctx))
}

func TestTerminatedEventEndsSession(t *testing.T) {
	h, adapters := fakeHost(t, daptest.Native)
	ctx := testContext(t)

	s, err := h.Start(ctx, "/work", lc.Config{"type": "cppdbg", "request": "attach", "processId": 1})
	require.NoError(t, err)
	defer s.Stop(ctx)
	a := <-adapters

	require.NoError(t, a.SendEvent("terminated", nil))
	select {
	case <-s.Done():
	case <-ctx.Done():
		t.Fatal("terminated event did not end the session")
	}
}

func TestRunInTerminal(t *testing.T) {
	h, adapters := fakeHost(t, func(a *daptest.Adapter) { daptest.Debugpy(a, 1) })
	var got RunInTerminalArgs
	h.Terminal = func(args RunInTerminalArgs) (int, error) {
		got = args
		return 321, nil
	}
	ctx := testContext(t)

	s, err := h.Start(ctx, "/work", pythonLaunch())
	require.NoError(t, err)
	defer s.Stop(ctx)
	a := <-adapters

	_, err = a.SendRequest("runInTerminal", map[string]any{
		"kind": "integrated",
		"args": []string{"python3", "-m", "debugpy.launcher", "main.py"},
	})
	require.NoError(t, err)

	select {
	case resp := <-a.Responses:
		assert.True(t, resp.Success)
		assert.JSONEq(t, `{"processId":321}`, string(resp.Body))
	case <-ctx.Done():
		t.Fatal("no runInTerminal response")
	}
	assert.Equal(t, "/work", got.Cwd)
	assert.Equal(t, "python3", got.Args[0])
}

func TestOutputForwarded(t *testing.T) {
	h, adapters := fakeHost(t, daptest.Native)
	lines := make(chan string, 1)
	h.Output = func(session, category, text string) { lines <- category + ":" + text }
	ctx := testContext(t)

	s, err := h.Start(ctx, "/work", lc.Config{"name": "native", "type": "cppdbg", "request": "attach", "processId": 1})
	require.NoError(t, err)
	defer s.Stop(ctx)
	a := <-adapters

	require.NoError(t, a.SendEvent("output", map[string]any{"category": "stdout", "output": "hello\n"}))
	select {
	case line := <-lines:
		assert.Equal(t, "stdout:hello\n", line)
	case <-ctx.Done():
		t.Fatal("output not forwarded")
	}
}

func TestAdaptersFor(t *testing.T) {
	adapters := DefaultAdapters("/usr/bin/python3").Merge(Adapters{
		"cppdbg": {Command: "/opt/cpptools/OpenDebugAD7"},
		"lldb":   {Address: "127.0.0.1:4711"},
	})

	a, err := adapters.For(lc.Config{"type": "python"})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python3", a.Command)
	assert.Equal(t, []string{"-m", "debugpy.adapter"}, a.Args)

	a, err = adapters.For(lc.Config{"type": "cppdbg"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/cpptools/OpenDebugAD7", a.Command)

	a, err = adapters.For(lc.Config{"type": "lldb"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4711", a.Address)

	a, err = adapters.For(lc.Config{"type": "python", "debugServer": float64(5678)})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5678", a.Address)
}

func TestDocumentContext(t *testing.T) {
	assert.Empty(t, DocumentFrom(context.Background()))
	assert.Equal(t, "/a.py", DocumentFrom(WithDocument(context.Background(), "/a.py")))
}
