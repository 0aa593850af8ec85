package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the project tree and keep its cached artifact current",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			exitOnError(err)
			return nil
		}
		defer st.Close()

		d, err := watcher.NewDaemon(projectFlag, cfg, st, func(state indexer.BuildState) {
			fmt.Fprintf(os.Stderr, "rtk-mem watch: rebuilt %s (%s, %d files, %d changed)\n",
				state.ProjectRoot, state.CacheStatus, state.Artifact.FileCount,
				state.Delta.Added+state.Delta.Modified+state.Delta.Removed)
		})
		if err != nil {
			exitOnError(err)
			return nil
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Fprintf(os.Stderr, "rtk-mem watch: watching %s (debounce %dms)\n", projectFlag, cfg.Watch.DebounceMs)
		if err := d.Run(ctx); err != nil {
			exitOnError(err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
