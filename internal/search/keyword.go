package search

import (
	"sort"
	"strings"

	"github.com/aryannaik/newsletter-search/internal/substack"
)

const (
	titleWeight   = 1.0
	excerptWeight = 0.7
	contentWeight = 0.5

	// MaxKeywordScore is the score of a post matching in every field.
	MaxKeywordScore = titleWeight + excerptWeight + contentWeight
)

// KeywordMatch scores posts by case-insensitive substring matches of the
// whole query in title, excerpt and content. Posts that match nowhere are
// dropped. Equal scores keep their order in posts.
func KeywordMatch(query string, posts []substack.Post, limit int) []Result {
	if limit <= 0 {
		return []Result{}
	}

	q := strings.ToLower(query)

	results := make([]Result, 0)
	for _, post := range posts {
		score := keywordScore(q, post)
		if score == 0 {
			continue
		}
		results = append(results, Result{
			Post:             post,
			Score:            score,
			RelevantSections: []string{},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func keywordScore(lowerQuery string, post substack.Post) float64 {
	var score float64
	if strings.Contains(strings.ToLower(post.Title), lowerQuery) {
		score += titleWeight
	}
	if strings.Contains(strings.ToLower(post.Excerpt), lowerQuery) {
		score += excerptWeight
	}
	if strings.Contains(strings.ToLower(post.Content), lowerQuery) {
		score += contentWeight
	}
	return score
}
