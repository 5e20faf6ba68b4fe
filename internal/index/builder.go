package index

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/aryannaik/newsletter-search/internal/embeddings"
	"github.com/aryannaik/newsletter-search/internal/substack"
)

// DefaultChunkSize is the number of words per content chunk.
const DefaultChunkSize = 500

// Embedder turns text into a vector. A non-nil error means no vector is
// available for this call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Builder makes sure every post has embeddings in the cache.
type Builder struct {
	cache      *Cache
	embedder   Embedder
	chunkSize  int
	skipFailed bool

	// One indexing pass at a time, so concurrent searches never embed the
	// same post twice.
	mu sync.Mutex
}

type BuilderOption func(*Builder)

// WithChunkSize sets the number of words per content chunk.
func WithChunkSize(words int) BuilderOption {
	return func(b *Builder) {
		if words > 0 {
			b.chunkSize = words
		}
	}
}

// WithSkipFailed controls what happens when a chunk cannot be embedded.
// By default the chunk is stored with an empty vector and the post counts
// as indexed, so it is never retried. With skip enabled nothing is stored
// for that post and the next pass tries it again. Blank chunks rejected with
// embeddings.ErrEmptyInput are always stored with an empty vector.
func WithSkipFailed(skip bool) BuilderOption {
	return func(b *Builder) {
		b.skipFailed = skip
	}
}

func NewBuilder(cache *Cache, embedder Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		cache:     cache,
		embedder:  embedder,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EnsureIndexed embeds every post whose ID has no records yet and saves the
// cache if anything was added. It returns the number of posts indexed.
// Embedding work is not cancelled with ctx: a caller going away must not
// leave half-failed records behind.
func (b *Builder) EnsureIndexed(ctx context.Context, posts []substack.Post) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	var pending []substack.Post
	for _, p := range posts {
		if !b.cache.HasPost(p.ID) {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	log.Printf("Embedding %d new posts...", len(pending))

	indexed := 0
	for i, post := range pending {
		// The same ID can appear twice in one batch.
		if b.cache.HasPost(post.ID) {
			continue
		}

		records, ok := b.embedPost(ctx, post)
		if ok {
			b.cache.Append(records...)
			indexed++
		}

		if (i+1)%10 == 0 || i+1 == len(pending) {
			log.Printf("  Embedded %d/%d", i+1, len(pending))
		}
	}

	if indexed > 0 {
		b.cache.Save()
	}
	return indexed
}

type chunk struct {
	section Section
	text    string
}

func (b *Builder) chunks(post substack.Post) []chunk {
	chunks := []chunk{
		{SectionTitle, post.Title},
		{SectionExcerpt, post.Excerpt},
	}
	for _, text := range ChunkText(substack.PlainText(post.Content), b.chunkSize) {
		chunks = append(chunks, chunk{SectionContent, text})
	}
	return chunks
}

func (b *Builder) embedPost(ctx context.Context, post substack.Post) ([]EmbeddingRecord, bool) {
	chunks := b.chunks(post)
	records := make([]EmbeddingRecord, 0, len(chunks))

	for _, ch := range chunks {
		vec, err := b.embedder.Embed(ctx, ch.text)
		if err != nil {
			log.Printf("Error embedding %s of post %s: %v", ch.section, post.ID, err)
			// Blank text is rejected locally and would fail the same way on retry.
			if b.skipFailed && !errors.Is(err, embeddings.ErrEmptyInput) {
				return nil, false
			}
			vec = []float32{}
		}

		records = append(records, EmbeddingRecord{
			PostID:    post.ID,
			Embedding: vec,
			Text:      ch.text,
			Section:   ch.section,
		})
	}

	return records, true
}

// ChunkText splits text into consecutive slices of at most size words.
// There is no overlap and the last chunk may be shorter.
func ChunkText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := min(i+size, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
