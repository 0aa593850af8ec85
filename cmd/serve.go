package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/reranker"
	"github.com/rtk-mem/rtk-mem/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rtk-mem HTTP API on loopback",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			exitOnError(err)
			return nil
		}
		defer st.Close()

		// The reranker is cheap to construct (it just records the project
		// root); whether it's actually invoked is decided per-request by
		// each /v1/plan-context call's own ml_mode field.
		rr := reranker.New(projectFlag)

		server.Version = Version
		srv := server.New(cfg, st, rr)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := srv.Serve(ctx); err != nil {
			exitOnError(err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
