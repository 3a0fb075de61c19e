package parser

import (
	"sort"

	"github.com/dshills/lexcite/pkg/types"
)

// CheckStructure reports children claimed by more than one parent,
// children that are not declared units and cycles in the children graph.
func CheckStructure(tree *types.TreeAct) []error {
	var errs []error

	claims := make(map[string][]string)
	for _, id := range tree.Units {
		el, ok := tree.Elements[id]
		if !ok {
			continue
		}
		for _, child := range el.Children {
			if _, declared := tree.Elements[child]; !declared {
				errs = append(errs, &StructureError{ActNro: tree.Nro, ID: id, Problem: "child " + child + " is not a declared unit"})
				continue
			}
			claims[child] = append(claims[child], id)
		}
	}

	shared := make([]string, 0)
	for child, parents := range claims {
		if len(parents) > 1 {
			shared = append(shared, child)
		}
	}
	sort.Strings(shared)
	for _, child := range shared {
		errs = append(errs, &StructureError{ActNro: tree.Nro, ID: child, Problem: "claimed by several parents"})
	}

	// Iterative three-colour DFS
	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(tree.Units))
	type frame struct {
		id   string
		next int
	}
	for _, root := range tree.Units {
		if colour[root] != white {
			continue
		}
		stack := []frame{{id: root}}
		colour[root] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			el := tree.Elements[top.id]
			if el == nil || top.next >= len(el.Children) {
				colour[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := el.Children[top.next]
			top.next++
			if _, ok := tree.Elements[child]; !ok {
				continue
			}
			switch colour[child] {
			case white:
				colour[child] = grey
				stack = append(stack, frame{id: child})
			case grey:
				errs = append(errs, &StructureError{ActNro: tree.Nro, ID: child, Problem: "cycle through " + top.id})
			}
		}
	}
	return errs
}
