package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/lexcite/internal/validate"
)

// errValidation is returned when the report needs attention
var errValidation = errors.New("validation found problems")

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check index consistency, keyword artefacts and store counts",
	Long: `Validate the data directory and the retrieval stores.

Reports index/data mismatches, acts flagged for review, keyword units
with artefact IDs, act/keyword relation gaps and store count mismatches.
Exits non-zero when anything needs attention.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.validator.Run(cmd.Context(), a.indexer.Partition())
		if err != nil {
			return err
		}
		if validateJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
		} else {
			printReport(cmd, report)
		}
		if !report.OK() {
			return errValidation
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(validateCmd)
}

func printReport(cmd *cobra.Command, r *validate.Report) {
	cmd.Printf("Partition: %s\n", r.Partition)
	for _, c := range r.Indexes {
		state := "ok"
		if !c.OK() {
			state = "INCONSISTENT"
		}
		cmd.Printf("  %-22s index %-6d data %-6d %s\n", c.Name, c.IndexCount, c.DataCount, state)
	}
	cmd.Printf("Coverage: %d/%d acts, %d/%d keywords\n",
		r.Coverage.TransformedActs, r.Coverage.CitedActs,
		r.Coverage.ExtractedKeywords, r.Coverage.CitedKeywords)
	for _, act := range r.ReviewActs {
		cmd.Printf("  review act %d: %d structural errors, %d coverage gaps\n",
			act.Nro, len(act.StructuralErrors), len(act.CoverageGaps))
	}
	for _, art := range r.Artefacts {
		cmd.Printf("  artefact %s in keyword %s (act %d)\n", art.UnitID, art.Keyword, art.ActNro)
	}
	for _, gap := range r.Gaps {
		cmd.Printf("  relation gap: act %d declares %s\n", gap.ActNro, gap.Keyword)
	}
	if r.Stores != nil {
		cmd.Printf("Stores: %d leaf acts, %d chunks, %d keywords, %d questions; vectors %d acts, %d questions\n",
			r.Stores.Documents.LeafActs, r.Stores.Documents.ActVectors,
			r.Stores.Documents.Keywords, r.Stores.Documents.Questions,
			r.Stores.Vectors.Acts, r.Stores.Vectors.Questions)
		for _, m := range r.Stores.Mismatches {
			cmd.Printf("  ! %s\n", m)
		}
	}
	if r.OK() {
		cmd.Println("OK")
	}
}
