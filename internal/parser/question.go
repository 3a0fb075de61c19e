package parser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Classes of the Q&A markup blocks
const (
	ClassQuestion      = "qa_q"
	ClassJustification = "qa_a-just"
	ClassAnswer        = "qa_a-cont"
)

// QuestionText is the plain text extracted from Q&A markup
type QuestionText struct {
	Question      string
	Answer        string
	Justification string
}

// ParseQuestion extracts the question, answer and justification blocks.
// A missing block yields an empty string.
func ParseQuestion(markup string) (QuestionText, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return QuestionText{}, fmt.Errorf("failed to parse question markup: %w", err)
	}
	return QuestionText{
		Question:      blockText(findByClass(doc, ClassQuestion)),
		Answer:        blockText(findByClass(doc, ClassAnswer)),
		Justification: blockText(findByClass(doc, ClassJustification)),
	}, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// findByClass returns the first div carrying class, in document order
func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

// blockText joins the trimmed text pieces of n with single spaces. Anchor
// text is always separated from the text before it.
func blockText(n *html.Node) string {
	if n == nil {
		return ""
	}
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
				if c.Data != "script" && c.Data != "style" {
					walk(c)
				}
			}
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
