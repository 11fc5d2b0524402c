// Package cli implements the lmarshal command-line tool.
//
// The tool works on plain trees stored in any wire format:
//   - convert: re-encode a tree in another format after checking it
//   - inspect: check a tree and print its statistics
//   - flatten / unflatten: convert between nested and flat mappings
//
// Formats are picked from file extensions or set with --from and --to. The marshal
// configuration (type key, label key, prefixes) is read from a TOML file given with
// --config. All commands support --verbose (-v) for debug logging; the logger is passed
// through context.Context.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oy3o/lmarshal"
)

var version = "dev"

// SetVersion sets the version printed by --version.
func SetVersion(v string) { version = v }

type globalFlags struct {
	verbose    bool
	configPath string
}

// config returns the marshal configuration selected on the command line.
func (g *globalFlags) config() (lmarshal.Config, error) {
	if g.configPath == "" {
		return lmarshal.DefaultConfig(), nil
	}
	return lmarshal.LoadConfig(g.configPath)
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	return newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "lmarshal",
		Short:         "Inspect and convert marshaled object trees",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), newLogger(stderr, g.verbose)))
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "TOML marshal configuration")

	root.AddCommand(newConvertCmd(g))
	root.AddCommand(newInspectCmd(g))
	root.AddCommand(newFlattenCmd(g))
	root.AddCommand(newUnflattenCmd(g))
	return root
}
