package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"pycppdbg/pkg/pyexec"
	"pycppdbg/pkg/scaffold"
)

var initVariant string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Add pythoncpp configurations to launch.json",
	Long:  "Add starter pythoncpp configurations to the workspace's .vscode/launch.json.\n\nVariants:\n" + variantHelp(),
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initVariant, "variant", string(scaffold.VariantDefault), "configuration variant: default, windows, gdb, codelldb")
	rootCmd.AddCommand(initCmd)
}

func variantHelp() string {
	var b strings.Builder
	for _, c := range scaffold.Choices() {
		fmt.Fprintf(&b, "  %-9s %s (%s)\n", c.Variant, c.Label, c.Description)
	}
	return b.String()
}

func runInit(cmd *cobra.Command, _ []string) error {
	python := &pyexec.WorkspaceResolver{Override: cfg.PythonPath, Workspace: workspace}
	configs, err := scaffold.Configurations(scaffold.Variant(initVariant), python.Resolve(cmd.Context(), ""), runtime.GOOS)
	if err != nil {
		return err
	}

	added, err := scaffold.Write(workspace, configs)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "launch.json already has these configurations.")
		return nil
	}
	for _, name := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %q\n", name)
	}
	return nil
}
