package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/episode"
	"github.com/rtk-mem/rtk-mem/internal/explore"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/planner"
	"github.com/rtk-mem/rtk-mem/internal/reranker"
)

var errPlanNeedsTask = errors.New("plan: --task is required")

var (
	planTask   string
	planMLMode string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Assemble a token-budgeted context slice for a free-text task description",
	RunE: func(cmd *cobra.Command, args []string) error {
		if planTask == "" {
			exitOnError(errPlanNeedsTask)
			return nil
		}

		st, err := openStore(cfg)
		if err != nil {
			exitOnError(err)
			return nil
		}
		defer st.Close()

		ctx := context.Background()

		if strictFlag {
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

		if legacyFlag {
			result, err := explore.Context(ctx, st, cfg, projectFlag, queryType, tokenBudget, false)
			if err != nil {
				exitOnError(err)
				return nil
			}
			return printAssembly(result.Assembly)
		}

		var rr reranker.Reranker
		if planMLMode == "full" {
			rr = reranker.New(projectFlag)
		}

		epStore := episode.New(st)

		result, err := planner.PlanContext(ctx, st, cfg, rr, epStore, projectFlag, planTask, tokenBudget, planMLMode)
		if err != nil {
			exitOnError(err)
			return nil
		}
		return printAssembly(result)
	},
}

func init() {
	planCmd.Flags().StringVar(&planTask, "task", "", "free-text description of the task the context is for")
	planCmd.Flags().StringVar(&planMLMode, "ml-mode", "off", "reranker gate: off|full")
	rootCmd.AddCommand(planCmd)
}
