// Package citation interprets the bracket-nesting syntax of unit IDs.
//
// A unit ID such as "art(1)§(2)pkt(3)" names its own ancestors: every
// prefix that ends where the bracket depth returns to zero is the ID of an
// enclosing unit. Ancestors("art(1)§(2)") is therefore
// ["art(1)", "art(1)§(2)"], outermost first and ending with the ID itself.
//
// The two upstream feeds number some top-level units differently (Roman in
// one, Arabic in the other). FixRoman rewrites the first bracket group so
// an ancestor such as "roz(2)" can be looked up as "roz(II)".
package citation

import (
	"fmt"
	"strconv"
	"strings"
)

// NestingError reports an unmatched bracket in a unit ID
type NestingError struct {
	ID   string
	Pos  int
	Kind string // "unmatched closing" or "unmatched opening"
}

func (e *NestingError) Error() string {
	return fmt.Sprintf("%s parenthesis at %d in unit %q", e.Kind, e.Pos, e.ID)
}

// Ancestors returns every syntactic ancestor of id, outermost first, ending
// with id itself when its brackets balance. On unmatched brackets it returns
// the prefixes found so far together with a *NestingError.
func Ancestors(id string) ([]string, error) {
	var (
		depth     int
		open      = -1
		prefixes  []string
		nestError error
	)
	for i, ch := range id {
		switch ch {
		case '(':
			if depth == 0 {
				open = i
			}
			depth++
		case ')':
			if depth == 0 {
				if nestError == nil {
					nestError = &NestingError{ID: id, Pos: i, Kind: "unmatched closing"}
				}
				continue
			}
			depth--
			if depth == 0 {
				prefixes = append(prefixes, id[:i+1])
			}
		}
	}
	if depth > 0 && nestError == nil {
		nestError = &NestingError{ID: id, Pos: open, Kind: "unmatched opening"}
	}
	return prefixes, nestError
}

// Parent returns the nearest syntactic ancestor of id other than id itself
func Parent(id string) (string, bool) {
	ancestors, err := Ancestors(id)
	if err != nil || len(ancestors) < 2 || ancestors[len(ancestors)-1] != id {
		return "", false
	}
	return ancestors[len(ancestors)-2], true
}

// FixRoman converts the leading Arabic number of the first bracket group to
// Roman numerals. ok is false when there is nothing to convert.
func FixRoman(id string) (string, bool) {
	open := strings.IndexByte(id, '(')
	if open < 0 {
		return id, false
	}
	end := open + 1
	for end < len(id) && id[end] >= '0' && id[end] <= '9' {
		end++
	}
	if end == open+1 {
		return id, false
	}
	n, err := strconv.Atoi(id[open+1 : end])
	if err != nil {
		return id, false
	}
	roman, ok := ToRoman(n)
	if !ok {
		return id, false
	}
	return id[:open+1] + roman + id[end:], true
}

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// ToRoman converts 1..3999 to Roman numerals
func ToRoman(n int) (string, bool) {
	if n <= 0 || n >= 4000 {
		return "", false
	}
	var b strings.Builder
	for _, r := range romanTable {
		for n >= r.value {
			b.WriteString(r.symbol)
			n -= r.value
		}
	}
	return b.String(), true
}

// IsSynthetic reports whether id starts with one of the given prefixes
func IsSynthetic(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
