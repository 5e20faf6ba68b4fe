package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aryannaik/newsletter-search/internal/embeddings"
	"github.com/aryannaik/newsletter-search/internal/index"
	"github.com/aryannaik/newsletter-search/internal/substack"
	"github.com/aryannaik/newsletter-search/internal/summary"
)

type config struct {
	OpenAIKey            string
	EmbedModel           string
	EmbedTimeout         time.Duration
	EmbedRPS             float64
	SkipFailedEmbeddings bool
	FeedURL              string
	FeedTTL              time.Duration
	CachePath            string
	HuggingFaceKey       string
	SummaryEndpoint      string
	Port                 string
	StaticDir            string
}

func loadConfig() config {
	_ = godotenv.Load()

	return config{
		OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
		EmbedModel:           envOrDefault("EMBED_MODEL", embeddings.DefaultModel),
		EmbedTimeout:         envDuration("EMBED_TIMEOUT", embeddings.DefaultTimeout),
		EmbedRPS:             envFloat("EMBED_RPS", 0),
		SkipFailedEmbeddings: envBool("SKIP_FAILED_EMBEDDINGS", false),
		FeedURL:              envOrDefault("SUBSTACK_RSS_URL", substack.DefaultFeedURL),
		FeedTTL:              envDuration("FEED_TTL", time.Hour),
		CachePath:            envOrDefault("CACHE_PATH", index.DefaultCachePath),
		HuggingFaceKey:       os.Getenv("HUGGINGFACE_API_KEY"),
		SummaryEndpoint:      envOrDefault("SUMMARY_ENDPOINT", summary.DefaultEndpoint),
		Port:                 envOrDefault("PORT", "3000"),
		StaticDir:            envOrDefault("STATIC_DIR", "static"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Printf("Warning: invalid %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, v, def)
		return def
	}
	return b
}
