package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/lexcite/internal/indexer"
)

// runStages is the --stages flag of the run command
var runStages []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline or selected stages",
	Long: `Run pipeline stages in order. Without --stages every stage runs.

Stages: ` + stageNames() + `

Examples:
  lexcite run
  lexcite run --stages extract-acts,transform-acts`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stages, err := indexer.ParseStages(runStages)
		if err != nil {
			return err
		}
		return runPipeline(cmd, stages)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch questions, cited acts and their keywords from the portal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, indexer.ExtractStages)
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Prune questions, clean keywords and chunk acts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, indexer.TransformStages)
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Embed and store transformed documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, indexer.LoadStages)
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runStages, "stages", "s", nil, "comma separated stages to run")
	rootCmd.AddCommand(runCmd, extractCmd, transformCmd, loadCmd)
}

func stageNames() string {
	names := make([]string, len(indexer.AllStages))
	for i, s := range indexer.AllStages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// runPipeline wires the app, runs stages and prints a per-stage summary
func runPipeline(cmd *cobra.Command, stages []indexer.Stage) error {
	a, err := openApp(cmd.Context(), stages)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.indexer.Run(cmd.Context(), stages)
	if stats != nil {
		printStatistics(cmd, stats)
	}
	return err
}

func printStatistics(cmd *cobra.Command, stats *indexer.Statistics) {
	cmd.Printf("Run %s (partition %s)\n", stats.RunID, stats.Partition)
	for _, s := range stats.Stages {
		line := fmt.Sprintf("  %-20s pending %-6d processed %-6d failed %-6d",
			s.Stage, s.Pending, s.Processed, s.Failed)
		if s.Deferred > 0 {
			line += fmt.Sprintf(" deferred %d", s.Deferred)
		}
		cmd.Println(strings.TrimRight(line, " "))
	}
	for _, msg := range stats.ErrorMessages {
		cmd.Printf("  ! %s\n", msg)
	}
	cmd.Printf("Finished in %s\n", stats.Duration.Round(time.Millisecond))
}
