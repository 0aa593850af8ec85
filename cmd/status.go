package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/indexer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a cached artifact exists for the project and how fresh it is",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			exitOnError(err)
			return nil
		}
		defer st.Close()

		root, err := indexer.CanonicalProjectRoot(projectFlag)
		if err != nil {
			exitOnError(err)
			return nil
		}

		art, err := st.LoadArtifact(root)
		if err != nil {
			exitOnError(err)
			return nil
		}
		if art == nil {
			if formatFlag == "json" {
				return printJSON(map[string]any{"cached": false, "project_root": root})
			}
			fmt.Printf("no cached artifact for %s\n", root)
			return nil
		}

		age := time.Since(time.Unix(art.UpdatedAt, 0))
		stale := cfg.Cache.TTLSecs > 0 && age > time.Duration(cfg.Cache.TTLSecs)*time.Second

		if formatFlag == "json" {
			return printJSON(map[string]any{
				"cached":       true,
				"project_root": root,
				"file_count":   art.FileCount,
				"total_bytes":  art.TotalBytes,
				"age_seconds":  int64(age.Seconds()),
				"stale":        stale,
			})
		}
		freshness := "fresh"
		if stale {
			freshness = "stale"
		}
		fmt.Printf("%s: %d files, %d bytes, age %s (%s)\n", root, art.FileCount, art.TotalBytes, age.Round(time.Second), freshness)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
