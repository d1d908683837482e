package root

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level licitasis command.
var RootCmd = &cobra.Command{
	Use:           "licitasis",
	Short:         "LicitaSis audit CLI",
	Long:          "Command line interface for the LicitaSis audit API: sign in, review your own history and, as an administrator, query and prune the audit log.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// GetRoot returns the root command.
func GetRoot() *cobra.Command {
	return RootCmd
}
