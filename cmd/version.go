package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// set through -ldflags at release time
var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sweep version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sweep %s (commit %s, %s)\n", version, commit, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
