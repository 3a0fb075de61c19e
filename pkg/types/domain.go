package types

import (
	"strconv"
	"strings"
)

// Domain is a legal domain used to partition the question corpus
type Domain struct {
	Label     string `json:"label" yaml:"label"`
	ConceptID int    `json:"conceptId" yaml:"concept_id"`
}

// Partition is an ordered list of domains. A nil partition means the whole corpus.
type Partition []Domain

// Name returns the deterministic file prefix for the partition
func (p Partition) Name() string {
	if len(p) == 0 {
		return "all"
	}
	parts := make([]string, len(p))
	for i, d := range p {
		parts[i] = strconv.Itoa(d.ConceptID)
	}
	return strings.Join(parts, "_")
}
