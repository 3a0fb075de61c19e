package portal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dshills/lexcite/internal/config"
	"github.com/dshills/lexcite/pkg/types"
)

// payloadDate is the layout of the pointInTime field
const payloadDate = "2006-01-02"

type template map[string]any

// Payloads builds request bodies from the configured JSON templates
type Payloads struct {
	question         template
	questionActs     template
	questionKeywords template
	questionSearch   template
	actKeywords      template
	keyword          template
	now              func() time.Time
}

// NewPayloads parses every template. An empty template is treated as {}.
func NewPayloads(cfg config.PayloadConfig) (*Payloads, error) {
	p := &Payloads{now: time.Now}
	templates := []struct {
		name string
		raw  string
		dst  *template
	}{
		{"question", cfg.Question, &p.question},
		{"question_acts", cfg.QuestionActs, &p.questionActs},
		{"question_keywords", cfg.QuestionKeywords, &p.questionKeywords},
		{"question_search", cfg.QuestionSearch, &p.questionSearch},
		{"act_keywords", cfg.ActKeywords, &p.actKeywords},
		{"keyword", cfg.Keyword, &p.keyword},
	}
	for _, t := range templates {
		parsed := template{}
		if t.raw != "" {
			if err := json.Unmarshal([]byte(t.raw), &parsed); err != nil {
				return nil, fmt.Errorf("failed to parse %s payload template: %w", t.name, err)
			}
		}
		*t.dst = parsed
	}
	return p, nil
}

// build copies t and sets fields on the copy
func (p *Payloads) build(t template, fields map[string]any) map[string]any {
	out := make(map[string]any, len(t)+len(fields)+1)
	for k, v := range t {
		out[k] = v
	}
	out["pointInTime"] = p.today()
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (p *Payloads) today() string {
	return p.now().Format(payloadDate)
}

// Question is the body of a question detail request
func (p *Payloads) Question(nro int) map[string]any {
	return p.build(p.question, map[string]any{"nro": nro})
}

// QuestionActs is the body of a question related-acts request
func (p *Payloads) QuestionActs(nro int) map[string]any {
	return p.build(p.questionActs, map[string]any{"nro": nro})
}

// QuestionKeywords is the body of a question keywords request. It takes
// the portal's internal question id, not the nro.
func (p *Payloads) QuestionKeywords(id int) map[string]any {
	return p.build(p.questionKeywords, map[string]any{"id": id})
}

type domainPayload struct {
	Label     string `json:"label"`
	ConceptID int    `json:"conceptId"`
}

// QuestionSearch is the body of one page of the question search
func (p *Payloads) QuestionSearch(startFrom, hitsPp int, domains types.Partition) map[string]any {
	ds := make([]domainPayload, 0, len(domains))
	for _, d := range domains {
		ds = append(ds, domainPayload{Label: d.Label, ConceptID: d.ConceptID})
	}
	return p.build(p.questionSearch, map[string]any{
		"startFrom": startFrom,
		"hitsPp":    hitsPp,
		"domains":   ds,
	})
}

// ActKeywords is the body of an act keywords request
func (p *Payloads) ActKeywords(id int) map[string]any {
	return p.build(p.actKeywords, map[string]any{"id": id})
}

// Keyword is the body of one page of a keyword relation search
func (p *Payloads) Keyword(ref types.KeywordRef, startFrom, hitsPp int) map[string]any {
	return p.build(p.keyword, map[string]any{
		"uiConceptId":      ref.ConceptID,
		"uiInstanceOfType": strconv.Itoa(ref.InstanceOfType),
		"startFrom":        startFrom,
		"hitsPp":           hitsPp,
	})
}
