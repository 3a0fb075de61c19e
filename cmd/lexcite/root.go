package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/lexcite/internal/logger"
)

var (
	configPath string
	dataDir    string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "lexcite",
	Short: "Legal Q&A and statute retrieval index",
	Long: `lexcite extracts questions, acts and keywords from the legal portal,
transforms them into retrieval documents and loads them into the
document and vector stores.

Every stage is incremental: only keys missing from its output index are
processed, so an interrupted run can simply be repeated.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// stdout is reserved for command output and the MCP protocol
		logger.SetOutput(os.Stderr)
		logger.SetVerbose(verbose)
		logger.SetQuiet(quiet)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./lexcite.yaml, then ~/.config/lexcite/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding index and data files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
