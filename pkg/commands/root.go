package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pycppdbg/pkg/config"
	"pycppdbg/pkg/logger"
)

var (
	cfgFile   string
	logLevel  string
	workspace string

	cfg *config.Config
	// logOut is closed by Execute when it is a log file.
	logOut io.WriteCloser
)

var rootCmd = &cobra.Command{
	Use:   "pycppdbg",
	Short: "pycppdbg - debug Python and its C/C++ extensions together",
	Long: `pycppdbg starts debugpy stopped at entry, attaches a native debugger
(gdb via cpptools, vsdbg or lldb) to the same interpreter process and then
lets Python continue.

Serve the "pythoncpp" debug type to an IDE:
  pycppdbg serve --port 4711

Run a pythoncpp entry of .vscode/launch.json:
  pycppdbg launch "Python C++ Debugger"

Debug a single file with the default configurations:
  pycppdbg debug main.py

Create starter launch.json entries:
  pycppdbg init --variant gdb`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the CLI.
func Execute() error {
	defer func() {
		if logOut != nil {
			_ = logOut.Close()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.pycppdbg/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace folder (default is the current directory)")
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	var out io.Writer = cmd.ErrOrStderr()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logOut = f
		out = f
	}
	logger.Setup(out, level)

	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			return err
		}
	}
	return nil
}
