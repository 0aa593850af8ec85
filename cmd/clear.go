package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/indexer"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached artifact for the project",
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

		deleted, err := st.DeleteArtifact(root, cfg.Cache.RetryAttempts, cfg.Cache.RetryBaseMs)
		if err != nil {
			exitOnError(err)
			return nil
		}
		if deleted {
			fmt.Printf("cleared cached artifact for %s\n", root)
		} else {
			fmt.Printf("no cached artifact for %s\n", root)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
