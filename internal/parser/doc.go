// Package parser turns portal markup into structured data using
// golang.org/x/net/html.
//
// # Act trees
//
// An act arrives as one HTML document plus the list of unit IDs the portal
// declares for it. Every unit is a <div> whose id is the unit ID wrapped in
// escaped quotes. ParseAct links the declared units into a tree:
//
//	p := parser.New()
//	tree, err := p.ParseAct(raw)
//	if err != nil {
//	    return err // types.ErrNoUnits, types.ErrEmptyMarkup
//	}
//	root := tree.Elements["art(1)"]
//
// The children of a unit are found by a depth-first search from its div to
// the first element whose direct <div> children include declared IDs.
// A unit's text excludes everything under its children.
//
// # Structural problems
//
// Missing nodes, shared children and cycles never fail the parse. They are
// recorded in TreeAct.StructuralErrors so the act can be flagged for review:
//
//	for _, problem := range tree.StructuralErrors {
//	    logger.Warn("%s", problem)
//	}
//
// # Roman fix-up
//
// Some acts declare "roz(II)" while the units inside it are numbered
// "roz(2)§(1)". An orphan leaf whose syntactic parent is undeclared is
// linked under the Roman-numbered form when that form is declared.
//
// # Questions
//
// ParseQuestion extracts the qa_q, qa_a-cont and qa_a-just blocks of a Q&A
// entry as plain text.
package parser
