package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
	"github.com/rtk-mem/rtk-mem/internal/server"
)

// Version is set via ldflags at build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rtk-mem version",
	Run: func(cmd *cobra.Command, args []string) {
		server.Version = Version
		fmt.Printf("rtk-mem %s (artifact schema v%d)\n", Version, artifact.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
