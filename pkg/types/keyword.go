package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// KeywordRef is the identity of a keyword plus its display label
type KeywordRef struct {
	Label          string `json:"label"`
	ConceptID      int    `json:"conceptId"`
	InstanceOfType int    `json:"instanceOfType"`
}

// Key returns the stable string form "<conceptId>_<instanceOfType>"
func (k KeywordRef) Key() string {
	return fmt.Sprintf("%d_%d", k.ConceptID, k.InstanceOfType)
}

// Same reports whether both refs identify the same keyword, ignoring labels
func (k KeywordRef) Same(other KeywordRef) bool {
	return k.ConceptID == other.ConceptID && k.InstanceOfType == other.InstanceOfType
}

// Validate checks that the reference identifies a concept
func (k KeywordRef) Validate() error {
	if k.ConceptID <= 0 || k.InstanceOfType <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidKeyword, k.Key())
	}
	return nil
}

// Identity strips the label so refs can be used as map keys
func (k KeywordRef) Identity() KeywordRef {
	return KeywordRef{ConceptID: k.ConceptID, InstanceOfType: k.InstanceOfType}
}

// ParseKeywordKey parses the output of KeywordRef.Key
func ParseKeywordKey(key string) (KeywordRef, error) {
	left, right, ok := strings.Cut(key, "_")
	if !ok {
		return KeywordRef{}, fmt.Errorf("%w: malformed key %q", ErrInvalidKeyword, key)
	}
	conceptID, err := strconv.Atoi(left)
	if err != nil {
		return KeywordRef{}, fmt.Errorf("%w: malformed key %q", ErrInvalidKeyword, key)
	}
	instanceOfType, err := strconv.Atoi(right)
	if err != nil {
		return KeywordRef{}, fmt.Errorf("%w: malformed key %q", ErrInvalidKeyword, key)
	}
	return KeywordRef{ConceptID: conceptID, InstanceOfType: instanceOfType}, nil
}

// AppendKeyword appends ref unless an equal identity is already present
func AppendKeyword(list []KeywordRef, ref KeywordRef) ([]KeywordRef, bool) {
	for _, existing := range list {
		if existing.Same(ref) {
			return list, false
		}
	}
	return append(list, ref), true
}

// Unit is one cited unit of an act, either a single ID or a "left-right" range
type Unit struct {
	Nro       int    `json:"nro"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	StateName string `json:"stateName"`
}

// UnmarshalJSON replaces non-breaking spaces in the unit name
func (u *Unit) UnmarshalJSON(data []byte) error {
	type alias Unit
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw.Name = strings.ReplaceAll(raw.Name, "\u00a0", " ")
	*u = Unit(raw)
	return nil
}

// Range splits a "left-right" unit ID. ok is false for single units.
func (u Unit) Range() (left, right string, ok bool) {
	return strings.Cut(u.ID, "-")
}

// RelationData lists the units a keyword applies to. No units means the
// whole document.
type RelationData struct {
	Units []Unit `json:"units,omitempty"`
}

// WholeDocument reports whether the relation covers every element
func (r RelationData) WholeDocument() bool {
	return len(r.Units) == 0
}

// ActRelation links a keyword to one act
type ActRelation struct {
	Title        string       `json:"title"`
	Nro          int          `json:"nro"`
	LawType      string       `json:"lawType"`
	Validity     string       `json:"validity"`
	RelationData RelationData `json:"relationData"`
}

// Keyword is a keyword with its relations to acts
type Keyword struct {
	Label          string        `json:"label"`
	ConceptID      int           `json:"conceptId"`
	InstanceOfType int           `json:"instanceOfType"`
	ActRelations   []ActRelation `json:"actRelations"`
}

// UnmarshalJSON defaults missing relations to an empty list
func (k *Keyword) UnmarshalJSON(data []byte) error {
	type alias Keyword
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ActRelations == nil {
		raw.ActRelations = []ActRelation{}
	}
	*k = Keyword(raw)
	return nil
}

// Ref returns the keyword's reference
func (k Keyword) Ref() KeywordRef {
	return KeywordRef{Label: k.Label, ConceptID: k.ConceptID, InstanceOfType: k.InstanceOfType}
}

// Relation returns the relation for act nro, if present
func (k Keyword) Relation(nro int) (ActRelation, bool) {
	for _, rel := range k.ActRelations {
		if rel.Nro == nro {
			return rel, true
		}
	}
	return ActRelation{}, false
}
