// Package tubcmd contains Cobra CLI commands for working with tubs.
package tubcmd

import (
	"github.com/spf13/cobra"

	"github.com/lmxia/pmlcar/internal/runtime"
)

// RuntimeFunc opens the runtime for a command. It is called from RunE so that
// persistent flags are parsed by then. The command closes the runtime.
type RuntimeFunc func(cmd *cobra.Command) (*runtime.Runtime, error)

// NewTubCommand constructs the `tub` command group and subcommands.
func NewTubCommand(open RuntimeFunc) *cobra.Command {
	tubCmd := &cobra.Command{Use: "tub", Short: "Tub operations"}
	tubCmd.AddCommand(
		newTubNewCommand(open),
		newTubLsCommand(open),
		newTubCheckCommand(open),
		newTubExportCommand(open),
		newTubImportCommand(open),
		newTubHistCommand(open),
		newTubSplitCommand(open),
		newTubCacheCommand(open),
	)
	return tubCmd
}

// withRuntime opens the runtime, runs fn and closes it.
func withRuntime(cmd *cobra.Command, open RuntimeFunc, fn func(*runtime.Runtime) error) error {
	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(rt)
}
