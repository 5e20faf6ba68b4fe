package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/aryannaik/newsletter-search/internal/index"
	"github.com/aryannaik/newsletter-search/internal/search"
	"github.com/aryannaik/newsletter-search/internal/substack"
	"github.com/aryannaik/newsletter-search/internal/summary"
)

type Handlers struct {
	ranker          *search.Ranker
	feed            *substack.Client
	cache           *index.Cache
	summarizer      *summary.Client
	embedConfigured bool
	reindexFn       func()
}

func NewHandlers(ranker *search.Ranker, feed *substack.Client, cache *index.Cache, summarizer *summary.Client, embedConfigured bool, reindexFn func()) *Handlers {
	return &Handlers{
		ranker:          ranker,
		feed:            feed,
		cache:           cache,
		summarizer:      summarizer,
		embedConfigured: embedConfigured,
		reindexFn:       reindexFn,
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

type searchResponse struct {
	Error        string          `json:"error,omitempty"`
	Query        string          `json:"query"`
	Results      []search.Result `json:"results"`
	TotalResults int             `json:"totalResults"`
	SearchTime   int64           `json:"searchTime,omitempty"`
}

// HandleSearch serves GET ?q=&limit= and POST {"query","limit"}.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var query string
	limit := search.DefaultLimit

	switch r.Method {
	case http.MethodGet:
		query = r.URL.Query().Get("q")
		limit = parseLimit(r.URL.Query().Get("limit"), search.DefaultLimit)
	case http.MethodPost:
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		query = req.Query
		if req.Limit != nil && *req.Limit >= 0 {
			limit = *req.Limit
		}
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Query parameter is required"})
		return
	}

	posts, err := h.feed.FetchPosts(r.Context())
	if err != nil {
		log.Printf("Search error: %v", err)
		writeJSON(w, http.StatusInternalServerError, searchResponse{
			Error:   "Search failed",
			Query:   query,
			Results: []search.Result{},
		})
		return
	}

	results := h.ranker.Search(r.Context(), query, posts, limit)

	writeJSON(w, http.StatusOK, searchResponse{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
		SearchTime:   time.Now().UnixMilli(),
	})
}

type postsResponse struct {
	Error       string          `json:"error,omitempty"`
	Posts       []substack.Post `json:"posts"`
	LastUpdated string          `json:"lastUpdated"`
	Count       int             `json:"count"`
}

func (h *Handlers) HandlePosts(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)

	posts, err := h.feed.FetchPosts(r.Context())
	if err != nil {
		log.Printf("Error fetching posts: %v", err)
		writeJSON(w, http.StatusInternalServerError, postsResponse{
			Error:       "Failed to fetch posts",
			Posts:       []substack.Post{},
			LastUpdated: now,
		})
		return
	}

	w.Header().Set("Cache-Control", "public, s-maxage=3600, stale-while-revalidate")
	writeJSON(w, http.StatusOK, postsResponse{
		Posts:       posts,
		LastUpdated: now,
		Count:       len(posts),
	})
}

func (h *Handlers) HandlePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	post, err := h.feed.GetPostByID(r.Context(), id)
	if errors.Is(err, substack.ErrPostNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "post not found"})
		return
	}
	if err != nil {
		log.Printf("Error fetching post %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch post"})
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *Handlers) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter 'id'"})
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 5)

	posts, err := h.feed.FetchPosts(r.Context())
	if err != nil {
		log.Printf("Similar error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "similar search failed", "results": []search.Result{}})
		return
	}

	results := h.ranker.Related(id, posts, limit)

	writeJSON(w, http.StatusOK, map[string]any{
		"sourceId": id,
		"results":  results,
		"total":    len(results),
	})
}

func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No content provided."})
		return
	}

	text, err := h.summarizer.Summarize(r.Context(), req.Content)
	var upstream *summary.UpstreamError
	switch {
	case errors.Is(err, summary.ErrNotConfigured):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Hugging Face API key not set."})
	case errors.As(err, &upstream):
		writeJSON(w, upstream.StatusCode, map[string]string{"error": upstream.Body})
	case err != nil:
		log.Printf("Summary error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to summarize."})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"summary": text})
	}
}

type statusResponse struct {
	IndexCount           int    `json:"indexCount"`
	IndexedPosts         int    `json:"indexedPosts"`
	UpdatedAt            string `json:"updatedAt"`
	EmbeddingsConfigured bool   `json:"embeddingsConfigured"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	updatedAt := h.cache.UpdatedAt()
	updatedStr := ""
	if !updatedAt.IsZero() {
		updatedStr = updatedAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		IndexCount:           h.cache.Count(),
		IndexedPosts:         h.cache.PostCount(),
		UpdatedAt:            updatedStr,
		EmbeddingsConfigured: h.embedConfigured,
	})
}

func (h *Handlers) HandleReindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	go h.reindexFn()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reindex started"})
}

// parseLimit accepts any non-negative integer; anything else yields def.
func parseLimit(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
