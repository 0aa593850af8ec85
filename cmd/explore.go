package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/explore"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/progress"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Build a ranked context slice for the project without a free-text task",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExplore(false)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a full rescan and rebuild the cached artifact, then explore",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExplore(true)
	},
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(refreshCmd)
}

func runExplore(forceRefresh bool) error {
	st, err := openStore(cfg)
	if err != nil {
		exitOnError(err)
		return nil
	}
	defer st.Close()

	ctx := context.Background()

	if strictFlag && !forceRefresh {
		state, err := indexer.Build(ctx, st, cfg, projectFlag, false, true, verbose)
		if err != nil {
			exitOnError(err)
			return nil
		}
		if err := indexer.CheckStrict(state); err != nil {
			exitOnError(err)
			return nil
		}
	}

	reporter := progress.NewReporter()
	reporter.Start(1)
	reporter.Update(0, "scanning "+projectFlag)
	result, err := explore.Context(ctx, st, cfg, projectFlag, queryType, tokenBudget, forceRefresh)
	reporter.Finish()
	if err != nil {
		exitOnError(err)
		return nil
	}
	return printAssembly(result.Assembly)
}
