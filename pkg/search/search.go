// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package search resolves free-text queries into ranked quizzes. Three
// tiers are tried in order, each only when the previous one is unavailable
// or finds nothing: the vector store's native index, a manual cosine scan
// over all stored embeddings, and keyword matching against the quiz store.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leseb/quizsearch/pkg/embedding"
	"github.com/leseb/quizsearch/pkg/observability/logging"
	"github.com/leseb/quizsearch/pkg/quiz"
	"github.com/leseb/quizsearch/pkg/similarity"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

// Tier identifies the strategy that produced a response.
type Tier string

const (
	TierVector Tier = "vector"
	TierManual Tier = "fallback-manual"
	TierText   Tier = "fallback-text"
)

// DefaultFallbackSimilarity is the synthetic score given to keyword matches.
const DefaultFallbackSimilarity = 0.5

// ErrUnavailable is returned when no tier could run, which only happens
// when the quiz store itself is unreachable.
var ErrUnavailable = errors.New("search temporarily unavailable")

// errNoIndex marks a store without a native vector index.
var errNoIndex = errors.New("no native vector index")

// Result is one ranked quiz.
type Result struct {
	QuizID     string  `json:"quiz_id"`
	Similarity float64 `json:"similarity"`
	// Synthetic marks keyword matches whose similarity is the fixed
	// fallback score rather than a computed one.
	Synthetic bool       `json:"synthetic,omitempty"`
	Quiz      *quiz.Quiz `json:"quiz"`
}

// Response is the outcome of a search.
type Response struct {
	Tier    Tier     `json:"tier"`
	Results []Result `json:"results"`
}

// Options tunes the Service.
type Options struct {
	DefaultLimit       int
	MaxLimit           int
	NumCandidates      int
	ManualScanLimit    int
	ManualPageSize     int
	FallbackSimilarity float64
	TierTimeout        time.Duration
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		DefaultLimit:       10,
		MaxLimit:           100,
		NumCandidates:      200,
		ManualScanLimit:    10000,
		ManualPageSize:     500,
		FallbackSimilarity: DefaultFallbackSimilarity,
		TierTimeout:        5 * time.Second,
	}
}

// Service runs the tiered search pipeline.
type Service struct {
	provider embedding.Provider
	store    vectorstore.Backend
	quizzes  quiz.Store
	logger   *logging.Logger
	tracer   trace.Tracer
	opts     Options
}

// NewService creates a search Service. Zero-valued limits and timeouts take
// their defaults; FallbackSimilarity is used as given.
func NewService(p embedding.Provider, store vectorstore.Backend, quizzes quiz.Store, logger *logging.Logger, opts Options) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultOptions()
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = def.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = def.MaxLimit
	}
	if opts.NumCandidates <= 0 {
		opts.NumCandidates = def.NumCandidates
	}
	if opts.ManualScanLimit <= 0 {
		opts.ManualScanLimit = def.ManualScanLimit
	}
	if opts.ManualPageSize <= 0 {
		opts.ManualPageSize = def.ManualPageSize
	}
	if opts.TierTimeout <= 0 {
		opts.TierTimeout = def.TierTimeout
	}
	return &Service{
		provider: embedding.Checked(p),
		store:    store,
		quizzes:  quizzes,
		logger:   logger.Component("search"),
		tracer:   otel.Tracer("github.com/leseb/quizsearch/pkg/search"),
		opts:     opts,
	}
}

// Search ranks published quizzes against a free-text query.
func (s *Service) Search(ctx context.Context, query string, limit int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &Response{Tier: TierText, Results: []Result{}}, nil
	}
	return s.run(ctx, request{
		text:     query,
		keywords: []string{query},
		limit:    s.clampLimit(limit),
	})
}

// FindSimilar ranks published quizzes against an existing quiz, excluding
// the quiz itself. It returns an error wrapping quiz.ErrNotFound when the
// source quiz does not exist.
func (s *Service) FindSimilar(ctx context.Context, quizID string, limit int) (*Response, error) {
	src, err := s.quizzes.GetQuiz(ctx, quizID)
	if errors.Is(err, quiz.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		s.logger.Error("load source quiz", "quiz_id", quizID, "error", err)
		return nil, ErrUnavailable
	}

	parts := []string{src.Title, src.Description}
	parts = append(parts, src.Tags...)

	keywords := []string{src.Title}
	keywords = append(keywords, src.Tags...)

	return s.run(ctx, request{
		text:     strings.TrimSpace(strings.Join(parts, " ")),
		keywords: keywords,
		limit:    s.clampLimit(limit),
		exclude:  quizID,
	})
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		return s.opts.MaxLimit
	}
	return limit
}

type request struct {
	text     string
	keywords []string
	limit    int
	exclude  string
}

// outcome is the result of one tier attempt. A non-nil err means the tier
// was unavailable; an empty results slice means it ran and found nothing.
type outcome struct {
	results []Result
	err     error
}

// queryVector embeds the query at most once per request, remembering
// failures so the manual tier does not retry a provider that just failed.
type queryVector struct {
	done bool
	vec  []float32
	err  error
}

func (s *Service) run(ctx context.Context, req request) (*Response, error) {
	qv := &queryVector{}

	tiers := []struct {
		tier    Tier
		attempt func(context.Context, request, *queryVector) outcome
	}{
		{TierVector, s.vectorTier},
		{TierManual, s.manualTier},
	}

	for _, t := range tiers {
		out := s.attempt(ctx, t.tier, req, func(ctx context.Context) outcome {
			return t.attempt(ctx, req, qv)
		})
		if out.err != nil {
			if !errors.Is(out.err, errNoIndex) {
				s.logger.Warn("search tier unavailable", "tier", t.tier, "error", out.err)
			}
			continue
		}
		if len(out.results) > 0 {
			return &Response{Tier: t.tier, Results: out.results}, nil
		}
	}

	out := s.attempt(ctx, TierText, req, func(ctx context.Context) outcome {
		return s.textTier(ctx, req)
	})
	if out.err != nil {
		s.logger.Error("keyword fallback failed", "tier", TierText, "error", out.err)
		return nil, ErrUnavailable
	}
	results := out.results
	if results == nil {
		results = []Result{}
	}
	return &Response{Tier: TierText, Results: results}, nil
}

// attempt runs one tier under its own timeout and span.
func (s *Service) attempt(ctx context.Context, tier Tier, req request, fn func(context.Context) outcome) outcome {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TierTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, spanName(tier), trace.WithAttributes(
		attribute.String("search.tier", string(tier)),
		attribute.Int("search.limit", req.limit),
	))
	defer span.End()

	out := fn(ctx)
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, "tier unavailable")
		return out
	}
	span.SetAttributes(attribute.Int("search.results", len(out.results)))
	return out
}

func spanName(t Tier) string {
	switch t {
	case TierVector:
		return "search.tier.vector"
	case TierManual:
		return "search.tier.manual"
	default:
		return "search.tier.text"
	}
}

func (s *Service) embedQuery(ctx context.Context, req request, qv *queryVector) ([]float32, error) {
	if !qv.done {
		qv.vec, qv.err = s.provider.Embed(ctx, req.text)
		qv.done = true
	}
	return qv.vec, qv.err
}

// candidatePool is how many candidates the vector tiers collect before
// filtering, so unpublished and dangling entries do not starve the limit.
func (s *Service) candidatePool(req request) int {
	want := req.limit
	if req.exclude != "" {
		want++
	}
	return max(s.opts.NumCandidates, want)
}

func (s *Service) vectorTier(ctx context.Context, req request, qv *queryVector) outcome {
	ns, ok := s.store.(vectorstore.NativeSearcher)
	if !ok {
		return outcome{err: errNoIndex}
	}

	vec, err := s.embedQuery(ctx, req, qv)
	if err != nil {
		return outcome{err: err}
	}

	matches, err := ns.NearestNeighbors(ctx, vec, s.candidatePool(req))
	if errors.Is(err, vectorstore.ErrNativeSearchUnsupported) {
		return outcome{err: errNoIndex}
	}
	if err != nil {
		return outcome{err: err}
	}

	cands := make([]similarity.Scored, len(matches))
	for i, m := range matches {
		cands[i] = similarity.Scored{ID: m.QuizID, Score: m.Score}
	}
	return s.hydrate(ctx, req, cands)
}

func (s *Service) manualTier(ctx context.Context, req request, qv *queryVector) outcome {
	vec, err := s.embedQuery(ctx, req, qv)
	if err != nil {
		return outcome{err: err}
	}

	top := similarity.NewTopK(s.candidatePool(req))
	scanned := 0
	after := ""
	for scanned < s.opts.ManualScanLimit {
		if err := ctx.Err(); err != nil {
			return outcome{err: err}
		}

		pageSize := min(s.opts.ManualPageSize, s.opts.ManualScanLimit-scanned)
		page, err := s.store.List(ctx, after, pageSize)
		if err != nil {
			return outcome{err: fmt.Errorf("scan embeddings: %w", err)}
		}

		for _, e := range page {
			scanned++
			if err := vectorstore.CheckVector(e.QuizID, e.Vector, len(vec)); err != nil {
				s.logger.Error("skipping corrupt embedding", "quiz_id", e.QuizID, "error", err)
				continue
			}
			top.Push(similarity.Scored{ID: e.QuizID, Score: similarity.Cosine(vec, e.Vector)})
		}

		if len(page) < pageSize {
			break
		}
		after = page[len(page)-1].QuizID
	}

	if scanned >= s.opts.ManualScanLimit {
		if rest, err := s.store.List(ctx, after, 1); err == nil && len(rest) > 0 {
			s.logger.Warn("manual scan truncated", "scan_limit", s.opts.ManualScanLimit)
		}
	}
	return s.hydrate(ctx, req, top.Sorted())
}

func (s *Service) textTier(ctx context.Context, req request) outcome {
	want := req.limit
	if req.exclude != "" {
		want++
	}

	seen := make(map[string]bool)
	var results []Result
	for _, kw := range req.keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		matches, err := s.quizzes.SearchText(ctx, quiz.TextQuery{
			Text:   kw,
			Status: quiz.StatusPublished,
			Limit:  want,
		})
		if err != nil {
			return outcome{err: fmt.Errorf("keyword search: %w", err)}
		}
		for _, q := range matches {
			if q.ID == req.exclude || seen[q.ID] || !q.Published() {
				continue
			}
			seen[q.ID] = true
			results = append(results, Result{
				QuizID:     q.ID,
				Similarity: s.opts.FallbackSimilarity,
				Synthetic:  true,
				Quiz:       q,
			})
		}
	}

	if len(results) > req.limit {
		results = results[:req.limit]
	}
	return outcome{results: results}
}

// hydrate loads the quizzes behind ranked candidates, keeping only
// published quizzes that still exist, best first, trimmed to the limit.
func (s *Service) hydrate(ctx context.Context, req request, cands []similarity.Scored) outcome {
	if len(cands) == 0 {
		return outcome{}
	}

	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		if c.ID != req.exclude {
			ids = append(ids, c.ID)
		}
	}
	found, err := s.quizzes.FindQuizzes(ctx, ids, quiz.Filter{Status: quiz.StatusPublished})
	if err != nil {
		return outcome{err: fmt.Errorf("hydrate results: %w", err)}
	}
	byID := make(map[string]*quiz.Quiz, len(found))
	for _, q := range found {
		if q.Published() {
			byID[q.ID] = q
		}
	}

	ranked := make([]similarity.Scored, 0, len(ids))
	for _, c := range cands {
		if c.ID == req.exclude {
			continue
		}
		if _, ok := byID[c.ID]; !ok {
			s.logger.Debug("dropping candidate without published quiz", "quiz_id", c.ID)
			continue
		}
		ranked = append(ranked, c)
	}
	similarity.SortDesc(ranked)
	if len(ranked) > req.limit {
		ranked = ranked[:req.limit]
	}

	results := make([]Result, len(ranked))
	for i, c := range ranked {
		results[i] = Result{QuizID: c.ID, Similarity: c.Score, Quiz: byID[c.ID]}
	}
	return outcome{results: results}
}
