// Package chunker divides act trees into subtree chunks for embedding and
// builds the citation reconstruct table.
//
// # Basic Usage
//
//	c := chunker.New(chunker.EstimateTokenizer{}, chunker.DefaultBudget)
//	reconstruct, vectors, report := c.Chunk(tree)
//	if missing := chunker.CheckCoverage(tree, vectors); len(missing) > 0 {
//	    // flag the act for review
//	}
//
// # Chunking Strategy
//
// Every leaf unit is governed by a root: its outermost declared syntactic
// ancestor ("art(3)" for "art(3)ust(2)pkt(1)"). Each root is processed once
// and its whole subtree is collected in declaration order.
//
//   - Subtree within budget: one vector whose reconstruct_id is the root
//   - Subtree over budget: ceil(total/budget) word pieces with
//     reconstruct_id "root#1", "root#2", ...
//
// A piece that still exceeds the budget is halved until it fits or holds a
// single word. Such single words are listed in Report.Oversized.
//
// # Token Counting
//
// Tokenizer implementations:
//   - EstimateTokenizer: ceil(chars/4), the default
//   - WordTokenizer: whitespace separated words
//   - TiktokenTokenizer: BPE tokens of a tiktoken encoding
//
// # Reconstruct Table
//
// reconstruct[root] always holds the full subtree text. Split subtrees
// also get one entry per piece, each citing the root.
package chunker
