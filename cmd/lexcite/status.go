package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show key counts of every stage index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		indexes, err := a.indexer.Status()
		if err != nil {
			return err
		}
		cmd.Printf("Data dir: %s (partition %s)\n", a.cfg.DataDir, a.indexer.Partition().Name())
		for _, c := range indexes {
			mark := ""
			if !c.OK() {
				mark = " *"
			}
			cmd.Printf("  %-22s %6d%s\n", c.Name, c.IndexCount, mark)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
