// Package cli holds the together commands: the web server and two small
// helpers for operators.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/together/internal/app"
	"github.com/MrSnakeDoc/together/internal/version"
)

// NewRootCmd builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "together",
		Short:         "A private day counter, photo gallery and journal for two",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(newServeCmd(), newDaysCmd(), newHashPasswordCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context())
	if err != nil {
		return err
	}
	return a.Run()
}
