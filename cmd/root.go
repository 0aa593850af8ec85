package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtk-mem/rtk-mem/internal/config"
)

var (
	cfgFile     string
	verbose     bool
	projectFlag string
	detailFlag  string
	formatFlag  string
	queryType   string
	tokenBudget uint32
	legacyFlag  bool
	traceFlag   bool
	strictFlag  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rtk-mem",
	Short: "Project-memory layer for AI coding agents",
	Long: `rtk-mem indexes a codebase into a cached artifact, ranks files against
a task description, and assembles a token-budgeted context slice for an
AI coding agent — without re-reading the whole tree on every request.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".rtk-mem.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output, adds the full cause chain on failure")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", ".", "project root path")
	rootCmd.PersistentFlags().StringVar(&detailFlag, "detail", "normal", "detail level: compact|normal|verbose")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&queryType, "query-type", "general", "query type: general|bugfix|feature|refactor|incident")
	rootCmd.PersistentFlags().Uint32Var(&tokenBudget, "token-budget", 0, "token budget (0 uses the configured default)")
	rootCmd.PersistentFlags().BoolVar(&legacyFlag, "legacy", false, "use the tier-unaware ranking path instead of the graph-first plan pipeline")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "force verbose detail regardless of --detail")
	rootCmd.PersistentFlags().BoolVar(&strictFlag, "strict", false, "bail instead of auto-rebuilding a stale or dirty cached artifact")
}

// exitOnError prints a short message (the full cause chain under
// --verbose) and exits non-zero. Strict-mode failures already carry their
// own remediation text via the error's Error() method.
func exitOnError(err error) {
	if err == nil {
		return
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func effectiveDetail() string {
	if traceFlag {
		return "verbose"
	}
	return detailFlag
}
