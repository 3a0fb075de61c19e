package indexer

import (
	"fmt"
	"strings"
)

// Stage is one step of the pipeline
type Stage string

// Pipeline stages
const (
	StageExtractQuestions   Stage = "extract-questions"
	StageTransformQuestions Stage = "transform-questions"
	StageSelectActs         Stage = "select-acts"
	StageExtractActs        Stage = "extract-acts"
	StageDeriveKeywords     Stage = "derive-keywords"
	StageExtractKeywords    Stage = "extract-keywords"
	StageTransformKeywords  Stage = "transform-keywords"
	StageTransformActs      Stage = "transform-acts"
	StageLoad               Stage = "load"
)

// AllStages lists every stage in execution order. Acts are selected from
// transformed questions and keywords derived from extracted acts, so the
// order is fixed.
var AllStages = []Stage{
	StageExtractQuestions,
	StageTransformQuestions,
	StageSelectActs,
	StageExtractActs,
	StageDeriveKeywords,
	StageExtractKeywords,
	StageTransformKeywords,
	StageTransformActs,
	StageLoad,
}

// Groups of stages run by the CLI subcommands
var (
	ExtractStages = []Stage{
		StageExtractQuestions, StageSelectActs, StageExtractActs,
		StageDeriveKeywords, StageExtractKeywords,
	}
	TransformStages = []Stage{
		StageTransformQuestions, StageTransformKeywords, StageTransformActs,
	}
	LoadStages = []Stage{StageLoad}
)

// ParseStages resolves stage names, returning them in execution order.
// No names means every stage.
func ParseStages(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return AllStages, nil
	}
	want := make(map[Stage]bool, len(names))
	for _, name := range names {
		s := Stage(strings.TrimSpace(strings.ToLower(name)))
		if !s.Valid() {
			return nil, fmt.Errorf("unknown stage %q, expected one of %s", name, stageList())
		}
		want[s] = true
	}
	out := make([]Stage, 0, len(want))
	for _, s := range AllStages {
		if want[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Valid reports whether s names a pipeline stage
func (s Stage) Valid() bool {
	for _, known := range AllStages {
		if s == known {
			return true
		}
	}
	return false
}

func stageList() string {
	names := make([]string, len(AllStages))
	for i, s := range AllStages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
