package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/lexcite/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("lexcite %s\n", version)
		cmd.Printf("Build Time: %s\n", buildTime)
		cmd.Printf("Build Mode: %s\n", storage.BuildMode)
		cmd.Printf("SQLite Driver: %s\n", storage.DriverName)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
