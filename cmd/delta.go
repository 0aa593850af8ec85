package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
	"github.com/rtk-mem/rtk-mem/internal/delta"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
)

var deltaSince string

var deltaCmd = &cobra.Command{
	Use:   "delta",
	Short: "Report what changed in the project since the last scan (or a VCS revision)",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			exitOnError(err)
			return nil
		}
		defer st.Close()

		ctx := context.Background()
		var summary artifact.DeltaSummary

		if deltaSince != "" {
			if !cfg.Churn.GitDelta {
				exitOnError(errors.New("delta: --since requires churn.git_delta to be enabled in config"))
				return nil
			}
			summary, err = delta.VCSDelta(ctx, projectFlag, deltaSince, cfg.Churn.GitDelta)
			if err != nil {
				exitOnError(err)
				return nil
			}
		} else {
			state, err := indexer.Build(ctx, st, cfg, projectFlag, false, true, verbose)
			if err != nil {
				exitOnError(err)
				return nil
			}
			if strictFlag {
				if err := indexer.CheckStrict(state); err != nil {
					exitOnError(err)
					return nil
				}
			}
			if !state.CacheHit {
				if err := st.StoreArtifact(state.Artifact, cfg.Cache.MaxProjects, cfg.Cache.RetryAttempts, cfg.Cache.RetryBaseMs); err != nil {
					exitOnError(err)
					return nil
				}
			}
			summary = state.Delta
		}

		if formatFlag == "json" {
			return printJSON(summary)
		}
		fmt.Printf("added=%d modified=%d removed=%d\n", summary.Added, summary.Modified, summary.Removed)
		for _, c := range summary.Changes {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", c.Kind, c.RelPath)
		}
		return nil
	},
}

func init() {
	deltaCmd.Flags().StringVar(&deltaSince, "since", "", "VCS revision to diff against instead of the last cached scan")
	rootCmd.AddCommand(deltaCmd)
}
