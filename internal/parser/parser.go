package parser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/dshills/lexcite/internal/citation"
	"github.com/dshills/lexcite/pkg/types"
)

// StructureError is a non-fatal problem found while linking units
type StructureError struct {
	ActNro  int
	ID      string
	Problem string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("act %d unit %q: %s", e.ActNro, e.ID, e.Problem)
}

// Parser builds unit trees from act markup
type Parser struct {
	// SkipRomanFixup disables linking orphans under Roman-numbered parents
	SkipRomanFixup bool
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// NormalizeID strips the backslashes and quotes the portal wraps div ids in
func NormalizeID(id string) string {
	return strings.NewReplacer(`\`, "", `"`, "").Replace(id)
}

// CleanText removes escaped quotes, stray backslashes and non-breaking
// spaces, then collapses whitespace runs.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, `\"`, "")
	s = strings.ReplaceAll(s, `\`, "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	return strings.Join(strings.Fields(s), " ")
}

// ParseAct links the declared units of raw into a parent/child tree.
// Structural problems are recorded on the result, not returned.
func (p *Parser) ParseAct(raw *types.RawAct) (*types.TreeAct, error) {
	if len(raw.Units) == 0 {
		return nil, fmt.Errorf("%w: act %d", types.ErrNoUnits, raw.Nro)
	}
	if strings.TrimSpace(raw.Content) == "" {
		return nil, fmt.Errorf("%w: act %d", types.ErrEmptyMarkup, raw.Nro)
	}

	doc, err := html.Parse(strings.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup of act %d: %w", raw.Nro, err)
	}

	tree := &types.TreeAct{
		Nro:        raw.Nro,
		Title:      CleanText(raw.Title),
		ActLawType: raw.ActLawType,
		ShortQuote: CleanText(raw.ShortQuote),
		CiteLink:   raw.CiteLink,
		Units:      declaredUnits(raw.Units),
		Elements:   make(map[string]*types.Element),
		Keywords:   append([]types.KeywordRef{}, raw.Keywords...),
	}

	declared := make(map[string]bool, len(tree.Units))
	for _, id := range tree.Units {
		declared[id] = true
	}
	divs := indexDivs(doc)

	// Children
	for _, id := range tree.Units {
		el := &types.Element{Children: []string{}, Keywords: []types.KeywordRef{}}
		tree.Elements[id] = el

		node, ok := divs[id]
		if !ok {
			tree.AddStructuralError(&StructureError{ActNro: raw.Nro, ID: id, Problem: "no markup node"})
			continue
		}
		el.Children = findChildren(node, id, declared)
	}

	// Parents, in declaration order so the first claimant wins
	for _, parentID := range tree.Units {
		for _, childID := range tree.Elements[parentID].Children {
			child := tree.Elements[childID]
			if child.Parent == nil {
				child.Parent = types.StringPtr(parentID)
			}
		}
	}

	if !p.SkipRomanFixup {
		p.fixRomanParents(tree, declared)
	}

	// Text
	for _, id := range tree.Units {
		node, ok := divs[id]
		if !ok {
			continue
		}
		el := tree.Elements[id]
		exclude := make(map[string]bool, len(el.Children))
		for _, c := range el.Children {
			exclude[c] = true
		}
		el.Text = CleanText(ownText(node, exclude))
	}

	for _, err := range CheckStructure(tree) {
		tree.AddStructuralError(err)
	}
	return tree, nil
}

// fixRomanParents links isolated units under their syntactic parent when
// the parent is only declared with a Roman number.
func (p *Parser) fixRomanParents(tree *types.TreeAct, declared map[string]bool) {
	for _, id := range tree.Units {
		el := tree.Elements[id]
		if el.Parent != nil || len(el.Children) != 0 {
			continue
		}
		parent, ok := citation.Parent(id)
		if !ok || declared[parent] {
			continue
		}
		fixed, ok := citation.FixRoman(parent)
		if !ok || !declared[fixed] || fixed == id {
			continue
		}
		el.Parent = types.StringPtr(fixed)
		parentEl := tree.Elements[fixed]
		if !contains(parentEl.Children, id) {
			parentEl.Children = append(parentEl.Children, id)
		}
	}
}

func declaredUnits(units []string) []string {
	out := make([]string, 0, len(units))
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		id := NormalizeID(u)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// indexDivs maps every div's normalized id to its first occurrence
func indexDivs(doc *html.Node) map[string]*html.Node {
	divs := make(map[string]*html.Node)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" {
			if id := divID(n); id != "" {
				if _, exists := divs[id]; !exists {
					divs[id] = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return divs
}

func divID(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "id" {
			return NormalizeID(attr.Val)
		}
	}
	return ""
}

// findChildren searches depth-first from node for the first element whose
// direct div children include declared units and returns those units.
func findChildren(node *html.Node, self string, declared map[string]bool) []string {
	var search func(n *html.Node) []string
	search = func(n *html.Node) []string {
		if n.Type == html.ElementNode && n.Data == "div" {
			var found []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode || c.Data != "div" {
					continue
				}
				if id := divID(c); id != self && declared[id] && !contains(found, id) {
					found = append(found, id)
				}
			}
			if len(found) > 0 {
				return found
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if found := search(c); len(found) > 0 {
				return found
			}
		}
		return nil
	}

	children := search(node)
	if children == nil {
		return []string{}
	}
	return children
}

// ownText collects the text under node, skipping the subtrees of the
// excluded child divs.
func ownText(node *html.Node, exclude map[string]bool) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if t := strings.TrimSpace(c.Data); t != "" {
					parts = append(parts, t)
				}
			case html.ElementNode:
				if c.Data == "script" || c.Data == "style" {
					continue
				}
				if c.Data == "div" && exclude[divID(c)] {
					continue
				}
				walk(c)
			}
		}
	}
	walk(node)
	return strings.Join(parts, " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
