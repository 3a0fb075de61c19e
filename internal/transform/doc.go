// Package transform turns fetched records into their indexed form.
//
// # Questions
//
// Questions keeps only acts that are in force, not amendments, and that the
// portal exposes a unit list for. Synthetic citations ("all(...)",
// "roz(...)", ...) are dropped. Questions left without keywords or acts are
// kept but marked pruned.
//
// # Acts
//
// Acts builds the unit tree, applies keywords and chunks the subtrees.
// Acts with structural problems are flagged for review instead of failing.
//
// # Keywords
//
// Keyword filters a keyword's relations to extracted acts and back-fills
// whole-document relations for acts that declare the keyword themselves.
package transform
