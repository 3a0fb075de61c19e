package types

import (
	"encoding/json"
	"strings"
)

// CitationData is one unit of an act cited by a question
type CitationData struct {
	Nro  int    `json:"nro"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RelatedAct is an act cited by a question
type RelatedAct struct {
	Nro          int            `json:"nro"`
	Title        string         `json:"title"`
	LawType      string         `json:"lawType"`
	Validity     string         `json:"validity"`
	RelationData []CitationData `json:"relationData"`
}

// UnmarshalJSON defaults null relation data to an empty list
func (r *RelatedAct) UnmarshalJSON(data []byte) error {
	type alias RelatedAct
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.RelationData == nil {
		raw.RelationData = []CitationData{}
	}
	*r = RelatedAct(raw)
	return nil
}

// Question is a legal Q&A entry with its cited acts and keywords
type Question struct {
	Nro           int          `json:"nro"`
	Title         string       `json:"title"`
	Question      string       `json:"question"`
	Answer        string       `json:"answer"`
	Justification string       `json:"justification"`
	RelatedActs   []RelatedAct `json:"relatedActs"`
	Keywords      []KeywordRef `json:"keywords"`
	Pruned        bool         `json:"pruned,omitempty"`
	PruneReason   string       `json:"pruneReason,omitempty"`
}

// UnmarshalJSON defaults missing lists to empty slices
func (q *Question) UnmarshalJSON(data []byte) error {
	type alias Question
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.RelatedActs == nil {
		raw.RelatedActs = []RelatedAct{}
	}
	if raw.Keywords == nil {
		raw.Keywords = []KeywordRef{}
	}
	*q = Question(raw)
	return nil
}

// ActNros returns the distinct cited act numbers in citation order
func (q *Question) ActNros() []int {
	seen := make(map[int]bool, len(q.RelatedActs))
	nros := make([]int, 0, len(q.RelatedActs))
	for _, act := range q.RelatedActs {
		if !seen[act.Nro] {
			seen[act.Nro] = true
			nros = append(nros, act.Nro)
		}
	}
	return nros
}

// HasTitlePrefix reports whether title starts with any of prefixes
func HasTitlePrefix(title string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(title, p) {
			return true
		}
	}
	return false
}
