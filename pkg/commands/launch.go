package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	lc "pycppdbg/pkg/launchconfig"
	"pycppdbg/pkg/resolver"
)

// ErrNotPythonCpp means the named launch.json entry has another type.
var ErrNotPythonCpp = errors.New("configuration is not of type " + lc.DebugType)

var launchFile string

var launchCmd = &cobra.Command{
	Use:   "launch <name>",
	Short: "Run a pythoncpp configuration from launch.json",
	Long: `Run the pythoncpp entry called <name> from the workspace's
.vscode/launch.json. Both debuggers stay attached until the program ends or
the command is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

var debugCmd = &cobra.Command{
	Use:   "debug <file>",
	Short: "Debug a Python file with the default configurations",
	Long: `Debug <file> with the default Python configuration and the host's
default native attach configuration (gdb, or vsdbg on Windows).`,
	Args: cobra.ExactArgs(1),
	RunE: runDebug,
}

func init() {
	launchCmd.Flags().StringVar(&launchFile, "file", "", "file that ${file} expands to")
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(debugCmd)
}

// findLaunchRequest loads the pythoncpp entry name from scope.
func findLaunchRequest(scope, name string) (*lc.LaunchRequest, error) {
	configs, err := lc.ReadLaunchFile(scope)
	if err != nil {
		return nil, err
	}
	for _, c := range configs {
		if c.Name() != name {
			continue
		}
		if c.Type() != lc.DebugType {
			return nil, fmt.Errorf("%q: %w", name, ErrNotPythonCpp)
		}
		return lc.LaunchRequestFromConfig(c)
	}
	return nil, fmt.Errorf("no configuration named %q in %s", name, filepath.Join(scope, lc.LaunchFile))
}

func runLaunch(cmd *cobra.Command, args []string) error {
	req, err := findLaunchRequest(workspace, args[0])
	if err != nil {
		return err
	}
	if launchFile != "" {
		if req.File, err = filepath.Abs(launchFile); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()
	return runAndWait(ctx, newLauncher(ctx, workspace, cmd.OutOrStdout()), workspace, req, cmd.ErrOrStderr())
}

// debugFileRequest is the record used for debugging a single file.
func debugFileRequest(file string) *lc.LaunchRequest {
	return &lc.LaunchRequest{
		Name:         "Python C++ Debugger",
		Type:         lc.DebugType,
		Request:      "launch",
		PythonConfig: lc.SelectDefault,
		CppConfig:    resolver.HostCppVariant(),
		File:         file,
	}
}

func runDebug(cmd *cobra.Command, args []string) error {
	file, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return runAndWait(ctx, newLauncher(ctx, workspace, cmd.OutOrStdout()), workspace, debugFileRequest(file), cmd.ErrOrStderr())
}
