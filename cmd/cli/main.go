package main

import (
	"fmt"
	"os"

	"github.com/crucial707/licitasis/cmd/cli/audit"
	"github.com/crucial707/licitasis/cmd/cli/auth"
	"github.com/crucial707/licitasis/cmd/cli/history"
	"github.com/crucial707/licitasis/cmd/cli/root"
	"github.com/crucial707/licitasis/cmd/cli/users"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	history.InitHistory(rootCmd)
	audit.InitAudit(rootCmd)
	users.InitUsers(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
