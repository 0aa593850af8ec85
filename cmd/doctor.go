package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks and report their severity",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			// A doctor that can't even open the store still has something
			// to report; don't treat this as fatal the way other commands do.
			st = nil
		} else {
			defer st.Close()
		}

		report := doctor.Run(cfg, st, projectFlag)

		if formatFlag == "json" {
			if err := printJSON(report); err != nil {
				exitOnError(err)
				return nil
			}
		} else {
			for _, f := range report.Findings {
				fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", f.Severity, f.Name, f.Message)
			}
		}

		os.Exit(report.ExitCode())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
