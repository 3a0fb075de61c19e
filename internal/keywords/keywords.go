// Package keywords propagates keyword annotations over an act's unit tree.
//
// A keyword relation names the units it applies to. Each named unit and
// all of its descendants receive the keyword. A relation without units
// covers the whole document, and a "left-right" unit covers every unit
// declared between left and right inclusive.
package keywords

import (
	"fmt"

	"github.com/dshills/lexcite/pkg/types"
)

// StructuralError reports a relation that names a unit the act lacks
type StructuralError struct {
	ActNro  int
	Keyword string
	UnitID  string
	Problem string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("act %d keyword %s: unit %q %s", e.ActNro, e.Keyword, e.UnitID, e.Problem)
}

// CycleError reports a unit reached twice while cascading one keyword
type CycleError struct {
	ActNro int
	UnitID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("act %d: unit %q reached twice while cascading", e.ActNro, e.UnitID)
}

// Lookup returns the transformed keyword for ref
type Lookup func(ref types.KeywordRef) (types.Keyword, bool)

// Propagate applies kw to the units rel names and their descendants, and
// returns the structural problems found. Applying the same keyword twice
// changes nothing.
func Propagate(doc *types.TreeAct, kw types.KeywordRef, rel types.ActRelation) []error {
	var errs []error

	if rel.RelationData.WholeDocument() {
		return cascadeAll(doc, kw)
	}

	for _, unit := range rel.RelationData.Units {
		if left, right, ok := unit.Range(); ok {
			errs = append(errs, applyRange(doc, kw, left, right)...)
			continue
		}
		if _, ok := doc.Elements[unit.ID]; !ok {
			errs = append(errs, &StructuralError{ActNro: doc.Nro, Keyword: kw.Key(), UnitID: unit.ID, Problem: "is not declared"})
			continue
		}
		errs = append(errs, cascade(doc, unit.ID, kw)...)
	}
	return errs
}

// cascadeAll tags every declared unit. Units no top-level unit reaches sit
// on a parent cycle; each one the sweep has to start from is reported.
func cascadeAll(doc *types.TreeAct, kw types.KeywordRef) []error {
	var errs []error
	visited := make(map[string]bool)
	for _, id := range doc.TopLevel() {
		errs = append(errs, cascadeFrom(doc, id, kw, visited)...)
	}
	for _, id := range doc.Units {
		if _, ok := doc.Elements[id]; !ok || visited[id] {
			continue
		}
		errs = append(errs, &CycleError{ActNro: doc.Nro, UnitID: id})
		errs = append(errs, cascadeFrom(doc, id, kw, visited)...)
	}
	return errs
}

// applyRange walks the declaration order from left and stops after right
func applyRange(doc *types.TreeAct, kw types.KeywordRef, left, right string) []error {
	if _, ok := doc.Elements[left]; !ok {
		return []error{&StructuralError{ActNro: doc.Nro, Keyword: kw.Key(), UnitID: left, Problem: "starts a range but is not declared"}}
	}

	var errs []error
	started := false
	for _, id := range doc.Units {
		if id == left {
			started = true
		}
		if started {
			errs = append(errs, cascade(doc, id, kw)...)
		}
		if started && id == right {
			break
		}
	}
	return errs
}

// cascade adds kw to start and every descendant using an explicit stack
func cascade(doc *types.TreeAct, start string, kw types.KeywordRef) []error {
	return cascadeFrom(doc, start, kw, make(map[string]bool))
}

func cascadeFrom(doc *types.TreeAct, start string, kw types.KeywordRef, visited map[string]bool) []error {
	var errs []error
	stack := []string{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			errs = append(errs, &CycleError{ActNro: doc.Nro, UnitID: id})
			continue
		}
		visited[id] = true

		el, ok := doc.Elements[id]
		if !ok {
			continue
		}
		el.Keywords, _ = types.AppendKeyword(el.Keywords, kw)

		for i := len(el.Children) - 1; i >= 0; i-- {
			stack = append(stack, el.Children[i])
		}
	}
	return errs
}

// Apply propagates every keyword doc declares, using the relation each
// transformed keyword holds for doc. Keywords without a relation to doc
// are skipped.
func Apply(doc *types.TreeAct, lookup Lookup) []error {
	var errs []error
	for _, ref := range doc.Keywords {
		kw, ok := lookup(ref)
		if !ok {
			continue
		}
		rel, ok := kw.Relation(doc.Nro)
		if !ok {
			continue
		}
		errs = append(errs, Propagate(doc, ref, rel)...)
	}
	return errs
}
