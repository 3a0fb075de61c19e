// Package types provides shared type definitions for the lexcite pipeline.
//
// This package defines the payloads exchanged between the extraction,
// transform and load stages: questions, statutory acts, keywords and the
// chunked retrieval units derived from acts.
//
// # Acts
//
// A RawAct is what the portal returns for a statute: HTML markup plus the
// ordered list of unit IDs declared for it. The tree builder turns it into a
// TreeAct whose Elements map addresses every unit by its citation ID:
//
//	act.Elements["art(1)§(2)"] = &types.Element{
//	    Children: []string{"art(1)§(2)pkt(1)"},
//	    Parent:   types.StringPtr("art(1)"),
//	    Text:     "Umowa wymaga formy pisemnej.",
//	}
//
// The bracket nesting of a unit ID encodes its syntactic ancestors, so
// "art(1)§(2)" lives under "art(1)".
//
// # Keywords
//
// A keyword is identified by (ConceptID, InstanceOfType). KeywordRef is the
// light reference carried by questions, acts and elements; Keyword carries
// the per-act relations fetched from the keyword search:
//
//	ref := types.KeywordRef{Label: "najem", ConceptID: 42, InstanceOfType: 1}
//	ref.Key() // "42_1"
//
// # Retrieval Units
//
// ActVector is one embeddable chunk of an act subtree. LeafAct is the
// per-act citation table that maps every ActVector.ReconstructID to the text
// shown when the citation is opened.
//
// # Absent Fields
//
// Upstream payloads omit lists freely. Every list field decodes to an empty,
// non-nil slice when missing or null, and RelationData decodes the empty
// object as "applies to the whole document".
package types
