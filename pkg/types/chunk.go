package types

import (
	"errors"
	"fmt"
	"strings"
)

// ReconstructSeparator joins a citation ID and a 1-based chunk index
const ReconstructSeparator = "#"

// ActVector is one embeddable chunk of an act subtree
type ActVector struct {
	ActNro           int          `json:"act_nro"`
	ParentID         string       `json:"parent_id"`
	ReconstructID    string       `json:"reconstruct_id"`
	Text             string       `json:"text"`
	ParentTokens     int          `json:"parent_tokens"`
	TextTokens       int          `json:"text_tokens"`
	ParentlessTokens int          `json:"parentless_tokens"`
	ChunkID          *int         `json:"chunk_id"`     // Nullable - nil when the subtree was not split
	TotalChunks      *int         `json:"total_chunks"` // Nullable - nil when the subtree was not split
	NodeIDs          []string     `json:"node_ids"`
	Keywords         []KeywordRef `json:"keywords"`
}

// Split reports whether the vector is one piece of a split subtree
func (v *ActVector) Split() bool {
	return v.ChunkID != nil
}

// Key returns the unique "<act_nro>/<reconstruct_id>" identity
func (v *ActVector) Key() string {
	return fmt.Sprintf("%d/%s", v.ActNro, v.ReconstructID)
}

// Validate checks the vector's identity and content
func (v *ActVector) Validate() error {
	if v.ActNro <= 0 {
		return ErrInvalidNro
	}
	if v.ReconstructID == "" {
		return errors.New("reconstruct_id cannot be empty")
	}
	if strings.TrimSpace(v.Text) == "" {
		return errors.New("vector text cannot be empty")
	}
	if (v.ChunkID == nil) != (v.TotalChunks == nil) {
		return errors.New("chunk_id and total_chunks must both be set or both be nil")
	}
	return nil
}

// ReconstructID builds the identifier of the index-th piece of citeID
func ReconstructID(citeID string, index int) string {
	return fmt.Sprintf("%s%s%d", citeID, ReconstructSeparator, index)
}

// ArticleDetail is the displayable text for one citation
type ArticleDetail struct {
	CiteID string `json:"cite_id"`
	Text   string `json:"text"`
}

// LeafAct is the per-act citation table of the retrieval index
type LeafAct struct {
	Nro         int                      `json:"nro"`
	Title       string                   `json:"title"`
	ActLawType  string                   `json:"actLawType"`
	CiteLink    string                   `json:"citeLink"`
	Reconstruct map[string]ArticleDetail `json:"reconstruct"`
}
