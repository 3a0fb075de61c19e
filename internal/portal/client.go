package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/lexcite/internal/config"
	"github.com/dshills/lexcite/internal/fetch"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/internal/parser"
	"github.com/dshills/lexcite/pkg/types"
)

// ErrIncomplete is returned when some pages of a listing could not be fetched
var ErrIncomplete = errors.New("incomplete listing")

// Client reads questions, acts and keywords from the legal portal
type Client struct {
	fetcher  *fetch.Fetcher
	urls     config.PortalConfig
	payloads *Payloads
	domains  types.Partition
	pageSize int
	search   *semaphore.Weighted
	pages    *semaphore.Weighted
	now      func() time.Time
}

// NewClient creates a portal client. The semaphores bound the pagination the
// client performs itself; callers bound their own fan-out.
func NewClient(f *fetch.Fetcher, cfg *config.AppConfig) (*Client, error) {
	payloads, err := NewPayloads(cfg.Portal.Payloads)
	if err != nil {
		return nil, err
	}
	pageSize := cfg.Portal.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Client{
		fetcher:  f,
		urls:     cfg.Portal,
		payloads: payloads,
		domains:  cfg.Partition(),
		pageSize: pageSize,
		search:   semaphore.NewWeighted(int64(max(cfg.Concurrency.QuestionSearch, 1))),
		pages:    semaphore.NewWeighted(int64(max(cfg.Concurrency.Keywords, 1))),
		now:      time.Now,
	}, nil
}

// Partition returns the domains the client searches
func (c *Client) Partition() types.Partition {
	return c.domains
}

func (c *Client) withDate(base string, nro int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %s: %w", base, err)
	}
	q := u.Query()
	q.Set("nro", strconv.Itoa(nro))
	q.Set("pointInTime", c.now().Format(payloadDate))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type searchResponse struct {
	AvailableHitCount *int `json:"availableHitCount"`
	DocumentList      *[]struct {
		Nro int `json:"nro"`
	} `json:"documentList"`
}

// QuestionHitCount returns the number of questions in the client's domains
func (c *Client) QuestionHitCount(ctx context.Context) (int, error) {
	var resp searchResponse
	if err := c.fetcher.PostJSON(ctx, c.urls.QuestionSearchURL, c.payloads.QuestionSearch(0, 1, c.domains), &resp); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	if resp.AvailableHitCount == nil {
		logger.Warn("question search returned no availableHitCount")
		return 0, nil
	}
	return *resp.AvailableHitCount, nil
}

// QuestionNros returns one page of question numbers
func (c *Client) QuestionNros(ctx context.Context, start, size int) ([]int, error) {
	var resp searchResponse
	if err := c.fetcher.PostJSON(ctx, c.urls.QuestionSearchURL, c.payloads.QuestionSearch(start, size, c.domains), &resp); err != nil {
		return nil, fmt.Errorf("failed to list questions from %d: %w", start, err)
	}
	if resp.DocumentList == nil {
		logger.Warn("question search page %d returned no documentList", start)
		return []int{}, nil
	}
	nros := make([]int, 0, len(*resp.DocumentList))
	for _, doc := range *resp.DocumentList {
		nros = append(nros, doc.Nro)
	}
	return nros, nil
}

// AllQuestionNros pages through the whole question search. Numbers from
// failed pages are absent and ErrIncomplete is returned with the rest.
func (c *Client) AllQuestionNros(ctx context.Context) ([]int, error) {
	total, err := c.QuestionHitCount(ctx)
	if err != nil {
		return nil, err
	}
	res := fetch.Paginate(ctx, total, c.pageSize, c.search,
		func(ctx context.Context, p fetch.Page) ([]int, error) {
			return c.QuestionNros(ctx, p.Start, p.Size)
		},
		func(nro int) int { return nro },
	)
	if len(res.Failed) > 0 {
		return res.Items, fmt.Errorf("%w: %d of %d question pages failed", ErrIncomplete, len(res.Failed), len(fetch.Pages(total, c.pageSize)))
	}
	return res.Items, nil
}

type questionDetail struct {
	ID              int     `json:"id"`
	Nro             int     `json:"nro"`
	Title           string  `json:"title"`
	QuestionContent *string `json:"questionContent"`
	AnswerContent   string  `json:"answerContent"`
}

type relatedActDoc struct {
	Nro          int    `json:"nro"`
	Title        string `json:"title"`
	LawType      string `json:"lawType"`
	Validity     string `json:"validity"`
	RelationData *struct {
		Units []types.CitationData `json:"units"`
	} `json:"relationData"`
}

func (d relatedActDoc) relatedAct() types.RelatedAct {
	act := types.RelatedAct{
		Nro:          d.Nro,
		Title:        d.Title,
		LawType:      d.LawType,
		Validity:     d.Validity,
		RelationData: []types.CitationData{},
	}
	if d.RelationData != nil {
		act.RelationData = append(act.RelationData, d.RelationData.Units...)
	}
	return act
}

type documentListResponse struct {
	DocumentList *[]relatedActDoc `json:"documentList"`
}

type keywordsResponse struct {
	Keywords *[]types.KeywordRef `json:"keywords"`
}

// Question fetches a question with its related acts and keywords
func (c *Client) Question(ctx context.Context, nro int) (types.Question, error) {
	var detail questionDetail
	if err := c.fetcher.PostJSON(ctx, c.urls.QuestionURL, c.payloads.Question(nro), &detail); err != nil {
		return types.Question{}, fmt.Errorf("failed to fetch question %d: %w", nro, err)
	}
	if detail.QuestionContent == nil {
		return types.Question{}, &fetch.PayloadError{URL: c.urls.QuestionURL, Err: fmt.Errorf("question %d has no content", nro)}
	}

	var (
		acts     documentListResponse
		keywords keywordsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.fetcher.PostJSON(gctx, c.urls.QuestionActsURL, c.payloads.QuestionActs(nro), &acts)
	})
	g.Go(func() error {
		return c.fetcher.PostJSON(gctx, c.urls.QuestionKeywordsURL, c.payloads.QuestionKeywords(detail.ID), &keywords)
	})
	if err := g.Wait(); err != nil {
		return types.Question{}, fmt.Errorf("failed to fetch relations of question %d: %w", nro, err)
	}

	text, err := parser.ParseQuestion(*detail.QuestionContent + detail.AnswerContent)
	if err != nil {
		return types.Question{}, err
	}

	q := types.Question{
		Nro:           nro,
		Title:         detail.Title,
		Question:      text.Question,
		Answer:        text.Answer,
		Justification: text.Justification,
		RelatedActs:   []types.RelatedAct{},
		Keywords:      []types.KeywordRef{},
	}
	if acts.DocumentList != nil {
		for _, doc := range *acts.DocumentList {
			q.RelatedActs = append(q.RelatedActs, doc.relatedAct())
		}
	}
	if keywords.Keywords != nil {
		for _, k := range *keywords.Keywords {
			q.Keywords, _ = types.AppendKeyword(q.Keywords, k)
		}
	}
	return q, nil
}

type unitsResponse struct {
	Units *[]struct {
		UnitID string `json:"unitId"`
	} `json:"units"`
}

func (c *Client) units(ctx context.Context, nro int) ([]string, bool, error) {
	u, err := c.withDate(c.urls.UnitsURL, nro)
	if err != nil {
		return nil, false, err
	}
	var resp unitsResponse
	if err := c.fetcher.GetJSON(ctx, u, &resp); err != nil {
		return nil, false, err
	}
	if resp.Units == nil {
		return []string{}, false, nil
	}
	ids := make([]string, 0, len(*resp.Units))
	for _, unit := range *resp.Units {
		ids = append(ids, unit.UnitID)
	}
	return ids, true, nil
}

// UnitsAvailable reports whether the portal can list the units of act nro,
// which is what makes an act parsable.
func (c *Client) UnitsAvailable(ctx context.Context, nro int) (bool, error) {
	_, ok, err := c.units(ctx, nro)
	if err != nil {
		return false, fmt.Errorf("failed to probe units of act %d: %w", nro, err)
	}
	return ok, nil
}

type actDetail struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	ActLawType string `json:"actLawType"`
	ShortQuote string `json:"shortQuote"`
	CiteLink   string `json:"citeLink"`
	Content    string `json:"content"`
}

// Act fetches an act's detail, markup, unit list and keywords
func (c *Client) Act(ctx context.Context, nro int) (types.RawAct, error) {
	u, err := c.withDate(c.urls.ActURL, nro)
	if err != nil {
		return types.RawAct{}, err
	}
	var detail actDetail
	if err := c.fetcher.GetJSON(ctx, u, &detail); err != nil {
		return types.RawAct{}, fmt.Errorf("failed to fetch act %d: %w", nro, err)
	}

	act := types.RawAct{
		Nro:        nro,
		Title:      detail.Title,
		ActLawType: detail.ActLawType,
		ShortQuote: detail.ShortQuote,
		CiteLink:   detail.CiteLink,
		Content:    detail.Content,
		Keywords:   []types.KeywordRef{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		units, ok, err := c.units(gctx, nro)
		if err != nil {
			return fmt.Errorf("failed to fetch units of act %d: %w", nro, err)
		}
		if !ok {
			logger.Warn("act %d has no unit list", nro)
		}
		act.Units = units
		return nil
	})
	if c.urls.ActContentURL != "" {
		g.Go(func() error {
			cu, err := c.withDate(c.urls.ActContentURL, nro)
			if err != nil {
				return err
			}
			content, err := c.fetcher.GetText(gctx, cu)
			if err != nil {
				return fmt.Errorf("failed to fetch content of act %d: %w", nro, err)
			}
			act.Content = content
			return nil
		})
	}
	g.Go(func() error {
		var resp keywordsResponse
		if err := c.fetcher.PostJSON(gctx, c.urls.ActKeywordsURL, c.payloads.ActKeywords(detail.ID), &resp); err != nil {
			return fmt.Errorf("failed to fetch keywords of act %d: %w", nro, err)
		}
		if resp.Keywords == nil {
			logger.Warn("act %d has no keywords", nro)
			return nil
		}
		for _, k := range *resp.Keywords {
			act.Keywords, _ = types.AppendKeyword(act.Keywords, k)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.RawAct{}, err
	}
	return act, nil
}

type keywordSearchResponse struct {
	AvailableHitCount *int                 `json:"availableHitCount"`
	DocumentList      *[]types.ActRelation `json:"documentList"`
}

// KeywordHitCount returns the number of acts related to ref
func (c *Client) KeywordHitCount(ctx context.Context, ref types.KeywordRef) (int, error) {
	var resp keywordSearchResponse
	if err := c.fetcher.PostJSON(ctx, c.urls.KeywordURL, c.payloads.Keyword(ref, 0, 1), &resp); err != nil {
		return 0, fmt.Errorf("failed to count relations of keyword %s: %w", ref.Key(), err)
	}
	if resp.AvailableHitCount == nil {
		logger.Warn("keyword %s search returned no availableHitCount", ref.Key())
		return 0, nil
	}
	return *resp.AvailableHitCount, nil
}

func (c *Client) keywordPage(ctx context.Context, ref types.KeywordRef, p fetch.Page) ([]types.ActRelation, error) {
	var resp keywordSearchResponse
	if err := c.fetcher.PostJSON(ctx, c.urls.KeywordURL, c.payloads.Keyword(ref, p.Start, p.Size), &resp); err != nil {
		return nil, err
	}
	if resp.DocumentList == nil {
		logger.Warn("keyword %s %s returned no documentList", ref.Key(), p)
		return []types.ActRelation{}, nil
	}
	return *resp.DocumentList, nil
}

// KeywordRelations returns every act relation of ref, one per act
func (c *Client) KeywordRelations(ctx context.Context, ref types.KeywordRef) ([]types.ActRelation, error) {
	total, err := c.KeywordHitCount(ctx, ref)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []types.ActRelation{}, nil
	}
	res := fetch.Paginate(ctx, total, c.pageSize, c.pages,
		func(ctx context.Context, p fetch.Page) ([]types.ActRelation, error) {
			return c.keywordPage(ctx, ref, p)
		},
		func(rel types.ActRelation) int { return rel.Nro },
	)
	if len(res.Failed) > 0 {
		return nil, fmt.Errorf("%w: keyword %s lost %d pages", ErrIncomplete, ref.Key(), len(res.Failed))
	}
	return res.Items, nil
}

// Keyword fetches ref together with all of its act relations
func (c *Client) Keyword(ctx context.Context, ref types.KeywordRef) (types.Keyword, error) {
	relations, err := c.KeywordRelations(ctx, ref)
	if err != nil {
		return types.Keyword{}, err
	}
	return types.Keyword{
		Label:          ref.Label,
		ConceptID:      ref.ConceptID,
		InstanceOfType: ref.InstanceOfType,
		ActRelations:   relations,
	}, nil
}
