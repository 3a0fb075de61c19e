package chunker

import (
	"sort"
	"strings"

	"github.com/dshills/lexcite/internal/citation"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/pkg/types"
)

// DefaultBudget is the maximum token count of one chunk
const DefaultBudget = 512

// Chunker turns act trees into embeddable subtree chunks
type Chunker struct {
	tokenizer Tokenizer
	budget    int
}

// New creates a Chunker. A nil tokenizer means EstimateTokenizer and a
// non-positive budget means DefaultBudget.
func New(tokenizer Tokenizer, budget int) *Chunker {
	if tokenizer == nil {
		tokenizer = EstimateTokenizer{}
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Chunker{tokenizer: tokenizer, budget: budget}
}

// Budget returns the token budget
func (c *Chunker) Budget() int {
	return c.budget
}

// Tokenizer returns the tokenizer in use
func (c *Chunker) Tokenizer() Tokenizer {
	return c.tokenizer
}

// Report summarises one Chunk call
type Report struct {
	Roots     []string // roots in processing order
	Split     []string // roots whose subtree exceeded the budget
	Oversized []string // reconstruct ids of single-word pieces still over budget
	Errors    []error  // malformed unit ids met while locating roots
}

// node is one member of a subtree in declaration order
type node struct {
	id       string
	text     string
	keywords []types.KeywordRef
}

// Chunk builds the citation reconstruct map and the vectors of doc.
// Subtrees are visited in leaf declaration order so chunk numbering is
// stable across runs.
func (c *Chunker) Chunk(doc *types.TreeAct) (map[string]types.ArticleDetail, []types.ActVector, Report) {
	reconstruct := make(map[string]types.ArticleDetail)
	vectors := make([]types.ActVector, 0)
	var report Report

	order := doc.Order()
	processed := make(map[string]bool)

	for _, leaf := range doc.Leaves() {
		root, err := findRoot(doc, leaf)
		if err != nil {
			report.Errors = append(report.Errors, err)
		}
		if processed[root] {
			continue
		}
		processed[root] = true
		report.Roots = append(report.Roots, root)

		nodes := collect(doc, root, order)
		full := joinTexts(nodes)
		if strings.TrimSpace(full) == "" {
			logger.Debug("act %d: subtree %s has no text", doc.Nro, root)
			continue
		}

		reconstruct[root] = types.ArticleDetail{CiteID: root, Text: full}

		parentTokens := c.tokenizer.Count(nodes[0].text)
		parentlessTokens := c.tokenizer.Count(joinTexts(nodes[1:]))
		total := c.tokenizer.Count(full)

		if total <= c.budget {
			vectors = append(vectors, types.ActVector{
				ActNro:           doc.Nro,
				ParentID:         root,
				ReconstructID:    root,
				Text:             full,
				ParentTokens:     parentTokens,
				TextTokens:       total,
				ParentlessTokens: parentlessTokens,
				NodeIDs:          nodeIDs(nodes),
				Keywords:         unionKeywords(nodes),
			})
			continue
		}

		report.Split = append(report.Split, root)
		pieces := c.split(nodes, total)
		for i, p := range pieces {
			rid := types.ReconstructID(root, i+1)
			if p.tokens > c.budget {
				report.Oversized = append(report.Oversized, rid)
			}
			reconstruct[rid] = types.ArticleDetail{CiteID: root, Text: p.text}
			vectors = append(vectors, types.ActVector{
				ActNro:           doc.Nro,
				ParentID:         root,
				ReconstructID:    rid,
				Text:             p.text,
				ParentTokens:     parentTokens,
				TextTokens:       p.tokens,
				ParentlessTokens: parentlessTokens,
				ChunkID:          types.IntPtr(i + 1),
				TotalChunks:      types.IntPtr(len(pieces)),
				NodeIDs:          nodeIDs(p.nodes),
				Keywords:         unionKeywords(p.nodes),
			})
		}
	}

	return reconstruct, vectors, report
}

// piece is one word range of an over-budget subtree
type piece struct {
	text   string
	tokens int
	nodes  []node
}

// word is one whitespace separated word and the subtree node it came from
type word struct {
	text  string
	owner int
}

// split cuts the subtree into ceil(total/budget) word ranges of equal word
// count, then halves any range that still exceeds the budget.
func (c *Chunker) split(nodes []node, total int) []piece {
	var words []word
	// attach[i] is the word index an empty node i is attached to
	attach := make(map[int]int)
	for i, n := range nodes {
		fields := strings.Fields(n.text)
		if len(fields) == 0 {
			attach[i] = len(words)
			continue
		}
		for _, f := range fields {
			words = append(words, word{text: f, owner: i})
		}
	}
	if len(words) == 0 {
		return nil
	}

	n := (total + c.budget - 1) / c.budget
	var ranges [][2]int
	for i := 0; i < n; i++ {
		lo := i * len(words) / n
		hi := (i + 1) * len(words) / n
		if lo == hi {
			continue
		}
		ranges = append(ranges, c.fit(words, lo, hi)...)
	}

	pieces := make([]piece, 0, len(ranges))
	for k, r := range ranges {
		lo, hi := r[0], r[1]
		last := k == len(ranges)-1

		members := make(map[int]bool)
		for _, w := range words[lo:hi] {
			members[w.owner] = true
		}
		for i, at := range attach {
			if (at >= lo && at < hi) || (last && at >= hi) {
				members[i] = true
			}
		}
		owned := make([]node, 0, len(members))
		for i := range nodes {
			if members[i] {
				owned = append(owned, nodes[i])
			}
		}

		text := joinWords(words[lo:hi])
		pieces = append(pieces, piece{text: text, tokens: c.tokenizer.Count(text), nodes: owned})
	}
	return pieces
}

// fit halves words[lo:hi] until every range fits or holds a single word
func (c *Chunker) fit(words []word, lo, hi int) [][2]int {
	if hi-lo <= 1 || c.tokenizer.Count(joinWords(words[lo:hi])) <= c.budget {
		return [][2]int{{lo, hi}}
	}
	mid := (lo + hi) / 2
	return append(c.fit(words, lo, mid), c.fit(words, mid, hi)...)
}

// findRoot returns the subtree root governing leaf. The outermost declared
// syntactic ancestor is preferred; when leaf is not reachable from it the
// top of the parent chain is used instead.
func findRoot(doc *types.TreeAct, leaf string) (string, error) {
	ancestors, err := citation.Ancestors(leaf)
	for _, a := range ancestors {
		candidate := ""
		if fixed, ok := citation.FixRoman(a); ok && doc.Elements[fixed] != nil {
			candidate = fixed
		} else if doc.Elements[a] != nil {
			candidate = a
		}
		if candidate == "" {
			continue
		}
		if reachable(doc, candidate, leaf) {
			return candidate, err
		}
		break
	}
	return topOfChain(doc, leaf), err
}

// reachable reports whether target lies in the subtree of root
func reachable(doc *types.TreeAct, root, target string) bool {
	found := false
	walk(doc, root, func(id string) bool {
		if id == target {
			found = true
			return false
		}
		return true
	})
	return found
}

// topOfChain follows parents from id until a unit without a declared parent
func topOfChain(doc *types.TreeAct, id string) string {
	visited := map[string]bool{id: true}
	for {
		el := doc.Elements[id]
		if el == nil || el.Parent == nil || doc.Elements[*el.Parent] == nil || visited[*el.Parent] {
			return id
		}
		id = *el.Parent
		visited[id] = true
	}
}

// walk visits root and its descendants depth first, each at most once,
// until visit returns false.
func walk(doc *types.TreeAct, root string, visit func(id string) bool) {
	visited := make(map[string]bool)
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		el := doc.Elements[id]
		if el == nil {
			continue
		}
		if !visit(id) {
			return
		}
		for i := len(el.Children) - 1; i >= 0; i-- {
			stack = append(stack, el.Children[i])
		}
	}
}

// collect returns root's subtree sorted by declaration order, root first
func collect(doc *types.TreeAct, root string, order map[string]int) []node {
	var ids []string
	walk(doc, root, func(id string) bool {
		ids = append(ids, id)
		return true
	})
	position := func(id string) int {
		if id == root {
			return -1
		}
		if p, ok := order[id]; ok {
			return p
		}
		return len(order)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return position(ids[i]) < position(ids[j])
	})

	nodes := make([]node, 0, len(ids))
	for _, id := range ids {
		el := doc.Elements[id]
		nodes = append(nodes, node{id: id, text: el.Text, keywords: el.Keywords})
	}
	return nodes
}

// CheckCoverage returns the units reachable from a chunk root that no
// vector lists in its node_ids, in declaration order.
func CheckCoverage(doc *types.TreeAct, vectors []types.ActVector) []string {
	covered := make(map[string]bool)
	for _, v := range vectors {
		for _, id := range v.NodeIDs {
			covered[id] = true
		}
	}

	expected := make(map[string]bool)
	for _, leaf := range doc.Leaves() {
		root, _ := findRoot(doc, leaf)
		if expected[root] {
			continue
		}
		walk(doc, root, func(id string) bool {
			expected[id] = true
			return true
		})
	}

	missing := make([]string, 0)
	for _, id := range doc.Units {
		if expected[id] && !covered[id] {
			missing = append(missing, id)
			// declared twice would otherwise be reported twice
			covered[id] = true
		}
	}
	return missing
}

func joinTexts(nodes []node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := strings.TrimSpace(n.text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func joinWords(words []word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.text
	}
	return strings.Join(parts, " ")
}

func nodeIDs(nodes []node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
	}
	return ids
}

// unionKeywords deduplicates keywords by identity in order of first appearance
func unionKeywords(nodes []node) []types.KeywordRef {
	out := make([]types.KeywordRef, 0)
	for _, n := range nodes {
		for _, k := range n.keywords {
			out, _ = types.AppendKeyword(out, k)
		}
	}
	return out
}
