package search

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/aryannaik/newsletter-search/internal/index"
	"github.com/aryannaik/newsletter-search/internal/substack"
)

const (
	DefaultLimit = 10

	// RelevanceThreshold is the similarity a post must exceed to count as a
	// semantic match.
	RelevanceThreshold = 0.3
	// LowConfidenceThreshold: when every semantic result is below it,
	// keyword matches are merged in.
	LowConfidenceThreshold = 0.15

	maxRelevantSections = 3
)

// Result is a ranked post. Semantic scores are cosine similarities; pure
// keyword scores range up to MaxKeywordScore.
type Result struct {
	Post             substack.Post `json:"post"`
	Score            float64       `json:"score"`
	RelevantSections []string      `json:"relevantSections"`
}

// Embedder is the query-side view of the embedding service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Configured() bool
}

type Ranker struct {
	cache    *index.Cache
	builder  *index.Builder
	embedder Embedder
}

func NewRanker(cache *index.Cache, builder *index.Builder, embedder Embedder) *Ranker {
	return &Ranker{
		cache:    cache,
		builder:  builder,
		embedder: embedder,
	}
}

// Search ranks posts against query, most relevant first, returning at most
// limit results. It never fails: without a working embedding service it
// falls back to keyword matching. ctx bounds only the query embedding call.
func (r *Ranker) Search(ctx context.Context, query string, posts []substack.Post, limit int) []Result {
	if limit <= 0 {
		return []Result{}
	}

	if !r.embedder.Configured() {
		return KeywordMatch(query, posts, limit)
	}

	r.builder.EnsureIndexed(ctx, posts)

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil || len(queryVec) == 0 {
		log.Printf("Query embedding unavailable, using keyword search: %v", err)
		return KeywordMatch(query, posts, limit)
	}

	results := r.rank(queryVec, posts, limit)

	if len(results) == 0 || allBelow(results, LowConfidenceThreshold) {
		results = mergeKeyword(results, KeywordMatch(query, posts, limit), limit)
	}

	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Related returns the posts closest to the post with the given ID, scored
// by the best similarity between any chunk of the source post and any chunk
// of the candidate. The source post is excluded.
func (r *Ranker) Related(postID string, posts []substack.Post, limit int) []Result {
	if limit <= 0 {
		return []Result{}
	}

	var source []index.EmbeddingRecord
	records := r.cache.Records()
	for _, rec := range records {
		if rec.PostID == postID && len(rec.Embedding) > 0 {
			source = append(source, rec)
		}
	}
	if len(source) == 0 {
		return []Result{}
	}

	scores := newPostScores()
	for _, rec := range records {
		if rec.PostID == postID {
			continue
		}
		best := math.Inf(-1)
		for _, src := range source {
			best = max(best, CosineSimilarity(src.Embedding, rec.Embedding))
		}
		scores.observe(rec, best)
	}

	results := scores.results(posts)
	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// rank scores every cached record against queryVec. A post's score is the
// best similarity of any of its chunks.
func (r *Ranker) rank(queryVec []float32, posts []substack.Post, limit int) []Result {
	scores := newPostScores()
	for _, rec := range r.cache.Records() {
		scores.observe(rec, CosineSimilarity(queryVec, rec.Embedding))
	}

	candidates := scores.results(posts)

	relevant := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Score > RelevanceThreshold {
			relevant = append(relevant, c)
		}
	}
	if len(relevant) > 0 {
		return relevant
	}

	// Nothing clears the threshold: keep the best few anyway.
	sortByScore(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// postScores aggregates record similarities per post, remembering the order
// in which posts were first seen.
type postScores struct {
	order []string
	byID  map[string]*postScore
}

type postScore struct {
	score    float64
	sections []string
}

func newPostScores() *postScores {
	return &postScores{byID: make(map[string]*postScore)}
}

// observe keeps the maximum similarity per post. Each new maximum adds the
// record's text to the post's sections, so the list runs from the first
// record seen towards the best one.
func (s *postScores) observe(rec index.EmbeddingRecord, sim float64) {
	ps, ok := s.byID[rec.PostID]
	if !ok {
		s.byID[rec.PostID] = &postScore{score: sim, sections: []string{rec.Text}}
		s.order = append(s.order, rec.PostID)
		return
	}
	if sim > ps.score {
		ps.score = sim
		ps.sections = append(ps.sections, rec.Text)
	}
}

// results converts the aggregate into Results in first-seen order, dropping
// posts that are not in posts.
func (s *postScores) results(posts []substack.Post) []Result {
	byID := make(map[string]substack.Post, len(posts))
	for _, p := range posts {
		if _, dup := byID[p.ID]; !dup {
			byID[p.ID] = p
		}
	}

	results := make([]Result, 0, len(s.order))
	for _, id := range s.order {
		post, ok := byID[id]
		if !ok {
			continue
		}
		ps := s.byID[id]
		sections := ps.sections
		if len(sections) > maxRelevantSections {
			sections = sections[:maxRelevantSections]
		}
		results = append(results, Result{
			Post:             post,
			Score:            ps.score,
			RelevantSections: append([]string(nil), sections...),
		})
	}
	return results
}

// mergeKeyword appends keyword matches for posts not already present until
// limit is reached. Keyword scores are rescaled to [0,1] so they sort
// sensibly against cosine scores.
func mergeKeyword(results, keyword []Result, limit int) []Result {
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		seen[r.Post.ID] = struct{}{}
	}

	for _, kw := range keyword {
		if len(results) >= limit {
			break
		}
		if _, ok := seen[kw.Post.ID]; ok {
			continue
		}
		kw.Score /= MaxKeywordScore
		results = append(results, kw)
		seen[kw.Post.ID] = struct{}{}
	}
	return results
}

func allBelow(results []Result, threshold float64) bool {
	for _, r := range results {
		if r.Score >= threshold {
			return false
		}
	}
	return true
}

// sortByScore sorts descending. Ties keep their current order.
func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
