// Package resolver turns a "pythoncpp" launch record into the two concrete
// debug configurations: one for debugpy and one for the native debugger.
//
// Each side is resolved by an ordered list of strategies (inline, by name,
// built-in default). The first strategy that applies wins; if none
// applies the request is ambiguous.
package resolver

import (
	"context"
	"fmt"
	"runtime"

	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/pyexec"
)

// Pair is the resolved managed/native configuration pair.
type Pair struct {
	Managed lc.Config
	Native  lc.Config
}

// strategy yields a configuration when it applies to the request. A nil
// config with ok=false means "not applicable, try the next one".
type strategy func(ctx context.Context, req *lc.LaunchRequest, scope string) (cfg lc.Config, ok bool, err error)

// Resolver resolves launch records against a named configuration store.
type Resolver struct {
	Store  lc.Store
	Python pyexec.Resolver
	// PythonFor, when set, picks the interpreter resolver per scope and
	// takes precedence over Python.
	PythonFor pyexec.ForScope
	// GOOS selects the native default; runtime.GOOS when empty.
	GOOS string
}

// New creates a Resolver.
func New(store lc.Store, python pyexec.Resolver) *Resolver {
	return &Resolver{Store: store, Python: python}
}

// Resolve produces the configuration pair for req within scope. The
// returned configs are fresh copies: neither the request nor the store
// is modified, so resolving the same input twice gives equal pairs.
func (r *Resolver) Resolve(ctx context.Context, req *lc.LaunchRequest, scope string) (Pair, error) {
	log := logger.For("ConfigCheck")
	log.Info("checking and resolving configuration")

	if scope == "" {
		return Pair{}, noWorkspace()
	}

	managed, err := first(ctx, req, scope, SideManaged,
		r.inlinePython, r.namedPython, r.defaultPython)
	if err != nil {
		return Pair{}, err
	}

	native, err := first(ctx, req, scope, SideNative,
		r.inlineCpp, r.namedCpp, r.defaultCpp)
	if err != nil {
		return Pair{}, err
	}

	log.Config("Python configuration", managed)
	log.Config("C++ configuration", native)
	log.Info("configuration check completed successfully")
	return Pair{Managed: managed, Native: native}, nil
}

func first(ctx context.Context, req *lc.LaunchRequest, scope string, side Side, strategies ...strategy) (lc.Config, error) {
	for _, s := range strategies {
		cfg, ok, err := s(ctx, req, scope)
		if err != nil {
			return nil, err
		}
		if ok {
			return cfg, nil
		}
	}
	return nil, ambiguous(side)
}

func (r *Resolver) inlinePython(_ context.Context, req *lc.LaunchRequest, _ string) (lc.Config, bool, error) {
	if req.EntirePythonConfig == nil {
		return nil, false, nil
	}
	logger.For("ConfigCheck").Info("using entirePythonConfig from launch.json")
	return req.EntirePythonConfig.Clone(), true, nil
}

func (r *Resolver) namedPython(_ context.Context, req *lc.LaunchRequest, scope string) (lc.Config, bool, error) {
	if req.PythonLaunchName == "" {
		return nil, false, nil
	}
	cfg, err := r.lookup(SideManaged, req.PythonLaunchName, scope)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func (r *Resolver) defaultPython(_ context.Context, req *lc.LaunchRequest, _ string) (lc.Config, bool, error) {
	if req.PythonConfig != lc.SelectDefault {
		return nil, false, nil
	}
	logger.For("ConfigCheck").Info("using default Python configuration")
	return DefaultPythonConfig(), true, nil
}

func (r *Resolver) inlineCpp(_ context.Context, req *lc.LaunchRequest, _ string) (lc.Config, bool, error) {
	if req.EntireCppConfig == nil {
		return nil, false, nil
	}
	logger.For("ConfigCheck").Info("using entireCppConfig from launch.json")
	cfg := req.EntireCppConfig.Clone()
	resetProcessID(cfg, false)
	return cfg, true, nil
}

func (r *Resolver) namedCpp(ctx context.Context, req *lc.LaunchRequest, scope string) (lc.Config, bool, error) {
	if req.CppAttachName == "" {
		return nil, false, nil
	}
	cfg, err := r.lookup(SideNative, req.CppAttachName, scope)
	if err != nil {
		return nil, false, err
	}

	// If the program field isn't specified, attach to the interpreter
	if cfg.String(lc.KeyProgram) == "" && RequiresProgram(cfg.Type()) {
		path := r.pythonPath(ctx, scope)
		logger.For("ConfigCheck").Info("auto-filling C++ program field with Python path", "path", path)
		cfg[lc.KeyProgram] = path
	}

	resetProcessID(cfg, true)
	return cfg, true, nil
}

func (r *Resolver) defaultCpp(ctx context.Context, req *lc.LaunchRequest, scope string) (lc.Config, bool, error) {
	log := logger.For("ConfigCheck")
	variant := req.CppConfig
	if variant == lc.SelectDefault {
		variant = r.hostVariant()
	}

	var cfg lc.Config
	switch variant {
	case lc.DefaultWinAttach:
		log.Info("using default Windows C++ attach configuration")
		cfg = WinAttachConfig()
	case lc.DefaultGDBAttach:
		log.Info("using default GDB C++ attach configuration")
		cfg = GDBAttachConfig(r.pythonPath(ctx, scope))
	case lc.DefaultCodeLLDBAttach:
		log.Info("using default CodeLLDB attach configuration")
		cfg = CodeLLDBAttachConfig()
	default:
		return nil, false, nil
	}
	resetProcessID(cfg, true)
	return cfg, true, nil
}

func (r *Resolver) lookup(side Side, name, scope string) (lc.Config, error) {
	log := logger.For("ConfigCheck")
	log.Info("looking for named configuration", "side", side, "name", name)
	if r.Store == nil {
		return nil, missingNamed(side, name)
	}
	cfg, ok, err := r.Store.Lookup(name, scope)
	if err != nil {
		log.Error("reading named configurations failed", "err", err)
		e := missingNamed(side, name).(*Error)
		e.Message = fmt.Sprintf("%s (%v)", e.Message, err)
		return nil, e
	}
	if !ok {
		return nil, missingNamed(side, name)
	}
	log.Info("found named configuration", "side", side, "name", name)
	return cfg.Clone(), nil
}

func (r *Resolver) pythonPath(ctx context.Context, scope string) string {
	python := r.Python
	if r.PythonFor != nil {
		python = r.PythonFor(scope)
	}
	if python == nil {
		return pyexec.Fallback
	}
	return python.Resolve(ctx, "")
}

func (r *Resolver) hostVariant() string {
	goos := r.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	return DefaultCppVariant(goos)
}

// resetProcessID clears the pid placeholder; the sequencer fills it once
// the interpreter is running. With force the engine's key is created when
// absent, otherwise only keys already present are cleared.
func resetProcessID(cfg lc.Config, force bool) {
	for _, key := range []string{lc.KeyProcessID, lc.KeyPID} {
		if _, ok := cfg[key]; ok {
			cfg[key] = ""
		}
	}
	if force {
		cfg[ProcessIDKey(cfg.Type())] = ""
	}
}
