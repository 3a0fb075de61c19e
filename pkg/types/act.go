package types

import "encoding/json"

// RawAct is an act as fetched from the portal, before tree building
type RawAct struct {
	Nro        int          `json:"nro"`
	Title      string       `json:"title"`
	ActLawType string       `json:"actLawType"`
	ShortQuote string       `json:"shortQuote"`
	CiteLink   string       `json:"citeLink"`
	Content    string       `json:"content"`
	Units      []string     `json:"units"`
	Keywords   []KeywordRef `json:"keywords"`
}

// UnmarshalJSON defaults missing lists to empty slices
func (a *RawAct) UnmarshalJSON(data []byte) error {
	type alias RawAct
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Units == nil {
		raw.Units = []string{}
	}
	if raw.Keywords == nil {
		raw.Keywords = []KeywordRef{}
	}
	*a = RawAct(raw)
	return nil
}

// Element is one addressable unit of an act
type Element struct {
	Children []string     `json:"children"`
	Parent   *string      `json:"parent"`
	Text     string       `json:"text"`
	Keywords []KeywordRef `json:"keywords"`
}

// HasKeyword reports whether the element already carries ref
func (e *Element) HasKeyword(ref KeywordRef) bool {
	for _, k := range e.Keywords {
		if k.Same(ref) {
			return true
		}
	}
	return false
}

// TreeAct is an act whose units have been linked into a parent/child graph
type TreeAct struct {
	Nro              int                 `json:"nro"`
	Title            string              `json:"title"`
	ActLawType       string              `json:"actLawType"`
	ShortQuote       string              `json:"shortQuote"`
	CiteLink         string              `json:"citeLink"`
	Units            []string            `json:"units"`
	Elements         map[string]*Element `json:"elements"`
	Keywords         []KeywordRef        `json:"keywords"`
	StructuralErrors []string            `json:"structuralErrors,omitempty"`
}

// Leaves returns the declared units without children, in declaration order
func (t *TreeAct) Leaves() []string {
	leaves := make([]string, 0)
	for _, id := range t.Units {
		if el, ok := t.Elements[id]; ok && len(el.Children) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// TopLevel returns the declared units without a parent, in declaration order
func (t *TreeAct) TopLevel() []string {
	top := make([]string, 0)
	for _, id := range t.Units {
		if el, ok := t.Elements[id]; ok && el.Parent == nil {
			top = append(top, id)
		}
	}
	return top
}

// Order maps each declared unit to its declaration position
func (t *TreeAct) Order() map[string]int {
	order := make(map[string]int, len(t.Units))
	for i, id := range t.Units {
		if _, seen := order[id]; !seen {
			order[id] = i
		}
	}
	return order
}

// AddStructuralError records a non-fatal structural problem
func (t *TreeAct) AddStructuralError(err error) {
	if err != nil {
		t.StructuralErrors = append(t.StructuralErrors, err.Error())
	}
}

// ActDocument is the transformed form of an act
type ActDocument struct {
	LeafAct          LeafAct     `json:"leafAct"`
	Vectors          []ActVector `json:"vectors"`
	StructuralErrors []string    `json:"structuralErrors,omitempty"`
	CoverageGaps     []string    `json:"coverageGaps,omitempty"`
	Review           bool        `json:"review"`
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to n
func IntPtr(n int) *int {
	return &n
}
