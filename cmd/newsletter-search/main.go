package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aryannaik/newsletter-search/internal/embeddings"
	"github.com/aryannaik/newsletter-search/internal/index"
	"github.com/aryannaik/newsletter-search/internal/search"
	"github.com/aryannaik/newsletter-search/internal/server"
	"github.com/aryannaik/newsletter-search/internal/substack"
	"github.com/aryannaik/newsletter-search/internal/summary"
)

// app holds the long-lived components shared by every command.
type app struct {
	cfg         config
	feed        *substack.Client
	embedClient *embeddings.Client
	cache       *index.Cache
	builder     *index.Builder
	ranker      *search.Ranker
}

func newApp(cfg config) *app {
	embedClient := embeddings.NewClient(embeddings.Config{
		APIKey:            cfg.OpenAIKey,
		Model:             cfg.EmbedModel,
		Timeout:           cfg.EmbedTimeout,
		RequestsPerSecond: cfg.EmbedRPS,
	})
	cache := index.NewCache(index.NewStore(cfg.CachePath))
	builder := index.NewBuilder(cache, embedClient, index.WithSkipFailed(cfg.SkipFailedEmbeddings))

	return &app{
		cfg:         cfg,
		feed:        substack.NewClient(cfg.FeedURL, cfg.FeedTTL),
		embedClient: embedClient,
		cache:       cache,
		builder:     builder,
		ranker:      search.NewRanker(cache, builder, embedClient),
	}
}

func newRootCmd() *cobra.Command {
	var reindex, indexOnly bool

	cmd := &cobra.Command{
		Use:   "newsletter-search",
		Short: "Search server for a Substack newsletter",
		Long: `Mirrors a Substack RSS feed and serves keyword and semantic search over it.

Semantic search is enabled when OPENAI_API_KEY is set; otherwise every
search falls back to keyword matching.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(loadConfig())
			a.serve(reindex, indexOnly)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reindex, "reindex", false, "Force full re-index (discard existing embeddings)")
	cmd.Flags().BoolVar(&indexOnly, "index-only", false, "Build index and exit (don't start server)")

	cmd.AddCommand(newSearchCmd(), newPostsCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) serve(reindex, indexOnly bool) {
	if reindex {
		a.cache.Clear()
		log.Println("Cleared existing index for full re-index")
	}

	a.runIndex(context.Background())

	if indexOnly {
		log.Println("Index-only mode: exiting")
		return
	}

	reindexFn := func() {
		log.Println("Re-index triggered")
		a.feed.Invalidate()
		a.runIndex(context.Background())
	}

	summarizer := summary.NewClient(a.cfg.HuggingFaceKey, a.cfg.SummaryEndpoint)
	handlers := server.NewHandlers(a.ranker, a.feed, a.cache, summarizer, a.embedClient.Configured(), reindexFn)
	srv := server.New(a.cfg.Port, a.cfg.StaticDir, handlers)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Background periodic re-index every 24h
	ticker := time.NewTicker(24 * time.Hour)
	go func() {
		for range ticker.C {
			log.Println("Periodic re-index starting")
			a.feed.Invalidate()
			a.runIndex(context.Background())
		}
	}()

	<-done
	ticker.Stop()
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Goodbye")
}

// runIndex embeds any posts missing from the cache.
func (a *app) runIndex(ctx context.Context) {
	if !a.embedClient.Configured() {
		log.Println("OPENAI_API_KEY not set: skipping indexing, search will use keyword matching")
		return
	}

	log.Println("Fetching posts from Substack...")
	posts, err := a.feed.FetchPosts(ctx)
	if err != nil {
		log.Printf("Error fetching posts: %v", err)
		return
	}
	log.Printf("Fetched %d posts", len(posts))

	if n := a.builder.EnsureIndexed(ctx, posts); n == 0 {
		log.Println("Index is up to date, no new posts to embed")
		return
	}

	log.Printf("Index has %d records for %d posts", a.cache.Count(), a.cache.PostCount())
}
