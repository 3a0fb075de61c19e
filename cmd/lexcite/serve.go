package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP operator server on stdio",
	Long: `Start an MCP server over stdio exposing the run_pipeline,
pipeline_status and validate_dataset tools.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		logger.Info("lexcite MCP server %s ready, listening on stdio...", version)
		err = mcp.NewServer(a.indexer, a.validator).Serve(cmd.Context())
		if errors.Is(err, context.Canceled) {
			logger.Info("Server stopped")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
