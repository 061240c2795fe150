package main

import (
	"fmt"
	"runtime"

	"github.com/raaihank/pasteshield/internal/server"
	"github.com/spf13/cobra"
)

// Build information
var (
	BuildDate = "undefined"
	GitCommit = "undefined"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", cyan("Version"), green(server.Version))
		fmt.Fprintf(out, "%s: %s\n", cyan("Build Date"), green(BuildDate))
		fmt.Fprintf(out, "%s: %s\n", cyan("Git Commit"), green(GitCommit))
		fmt.Fprintf(out, "%s: %s\n", cyan("Go Version"), green(runtime.Version()))
		fmt.Fprintf(out, "%s: %s/%s\n", cyan("Platform"), green(runtime.GOOS), green(runtime.GOARCH))
	},
}
