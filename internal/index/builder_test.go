package index

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/newsletter-search/internal/embeddings"
	"github.com/aryannaik/newsletter-search/internal/substack"
)

// fakeEmbedder returns a fixed vector per text and records every call.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	fail  func(text string) bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if strings.TrimSpace(text) == "" {
		return nil, embeddings.ErrEmptyInput
	}
	if f.fail != nil && f.fail(text) {
		return nil, errors.New("service unavailable")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	return strings.Join(w, " ")
}

func newTestCache(t *testing.T) (*Cache, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "embeddings-cache.json"))
	return NewCache(store), store
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		size   int
		counts []int
	}{
		{"empty", "", 500, []int{}},
		{"whitespace only", "   \n\t ", 500, []int{}},
		{"shorter than a chunk", words(10), 500, []int{10}},
		{"exact multiple", words(1000), 500, []int{500, 500}},
		{"short final chunk", words(1201), 500, []int{500, 500, 201}},
		{"non-positive size uses default", words(501), 0, []int{500, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(tt.text, tt.size)
			counts := make([]int, len(chunks))
			for i, c := range chunks {
				counts[i] = len(strings.Fields(c))
			}
			assert.Equal(t, tt.counts, counts)
		})
	}

	t.Run("no overlap and order preserved", func(t *testing.T) {
		chunks := ChunkText("a b c d e", 2)
		assert.Equal(t, []string{"a b", "c d", "e"}, chunks)
	})
}

func TestEnsureIndexed(t *testing.T) {
	cache, store := newTestCache(t)
	embedder := &fakeEmbedder{}
	builder := NewBuilder(cache, embedder)

	posts := []substack.Post{
		{ID: "p1", Title: "AI and the Future", Excerpt: "An excerpt", Content: "<p>" + words(1200) + "</p>"},
		{ID: "p2", Title: "Second", Excerpt: "Another", Content: "short body"},
	}

	n := builder.EnsureIndexed(context.Background(), posts)
	assert.Equal(t, 2, n)

	records := cache.Records()
	require.Len(t, records, 5+3)

	assert.Equal(t, EmbeddingRecord{PostID: "p1", Embedding: []float32{17, 1}, Text: "AI and the Future", Section: SectionTitle}, records[0])
	assert.Equal(t, SectionExcerpt, records[1].Section)
	for _, r := range records[2:5] {
		assert.Equal(t, "p1", r.PostID)
		assert.Equal(t, SectionContent, r.Section)
		assert.NotContains(t, r.Text, "<p>")
	}
	assert.Equal(t, "short body", records[7].Text)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, persisted, 8)

	t.Run("second pass does not embed again", func(t *testing.T) {
		before := embedder.callCount()
		n := builder.EnsureIndexed(context.Background(), posts)
		assert.Equal(t, 0, n)
		assert.Equal(t, before, embedder.callCount())
		assert.Equal(t, 8, cache.Count())
	})

	t.Run("only new posts are embedded", func(t *testing.T) {
		before := embedder.callCount()
		more := append(posts, substack.Post{ID: "p3", Title: "Third", Excerpt: "x"})
		n := builder.EnsureIndexed(context.Background(), more)
		assert.Equal(t, 1, n)
		assert.Equal(t, before+2, embedder.callCount())
	})
}

func TestEnsureIndexedDuplicateIDsInBatch(t *testing.T) {
	cache, _ := newTestCache(t)
	embedder := &fakeEmbedder{}
	builder := NewBuilder(cache, embedder)

	post := substack.Post{ID: "p1", Title: "Title", Excerpt: "Excerpt"}
	n := builder.EnsureIndexed(context.Background(), []substack.Post{post, post})

	assert.Equal(t, 1, n)
	assert.Equal(t, 2, embedder.callCount())
}

func TestEnsureIndexedNothingNewSkipsSave(t *testing.T) {
	cache, store := newTestCache(t)
	builder := NewBuilder(cache, &fakeEmbedder{})

	assert.Equal(t, 0, builder.EnsureIndexed(context.Background(), nil))
	assert.True(t, store.UpdatedAt().IsZero(), "no file written")
}

func TestEnsureIndexedFailedChunks(t *testing.T) {
	failExcerpt := func(text string) bool { return text == "broken excerpt" }
	posts := []substack.Post{{ID: "p1", Title: "Title", Excerpt: "broken excerpt", Content: "body"}}

	t.Run("recorded with empty vector by default", func(t *testing.T) {
		cache, _ := newTestCache(t)
		embedder := &fakeEmbedder{fail: failExcerpt}
		builder := NewBuilder(cache, embedder)

		assert.Equal(t, 1, builder.EnsureIndexed(context.Background(), posts))
		records := cache.Records()
		require.Len(t, records, 3)
		assert.Equal(t, SectionExcerpt, records[1].Section)
		assert.NotNil(t, records[1].Embedding)
		assert.Empty(t, records[1].Embedding)

		// The failure is permanent: the post is considered indexed.
		before := embedder.callCount()
		builder.EnsureIndexed(context.Background(), posts)
		assert.Equal(t, before, embedder.callCount())
	})

	t.Run("skipped and retried when configured", func(t *testing.T) {
		cache, store := newTestCache(t)
		embedder := &fakeEmbedder{fail: failExcerpt}
		builder := NewBuilder(cache, embedder, WithSkipFailed(true))

		assert.Equal(t, 0, builder.EnsureIndexed(context.Background(), posts))
		assert.Equal(t, 0, cache.Count())
		assert.True(t, store.UpdatedAt().IsZero())

		embedder.fail = nil
		assert.Equal(t, 1, builder.EnsureIndexed(context.Background(), posts))
		assert.Equal(t, 3, cache.Count())
	})

	t.Run("blank chunk is not retried when skipping", func(t *testing.T) {
		cache, store := newTestCache(t)
		embedder := &fakeEmbedder{}
		builder := NewBuilder(cache, embedder, WithSkipFailed(true))
		imageOnly := []substack.Post{{ID: "p1", Title: "Image post", Content: `<img src="a.png">`}}

		assert.Equal(t, 1, builder.EnsureIndexed(context.Background(), imageOnly))
		assert.Equal(t, 0, builder.EnsureIndexed(context.Background(), imageOnly))

		assert.Equal(t, []string{"Image post", ""}, embedder.calls)
		records := cache.Records()
		require.Len(t, records, 2)
		assert.Equal(t, []float32{10, 1}, records[0].Embedding)
		assert.Equal(t, SectionExcerpt, records[1].Section)
		assert.Empty(t, records[1].Embedding)
		assert.False(t, store.UpdatedAt().IsZero())
	})
}

func TestEnsureIndexedIgnoresCallerCancellation(t *testing.T) {
	cache, _ := newTestCache(t)
	var sawCancelled bool
	embedder := &ctxCheckingEmbedder{onCall: func(ctx context.Context) {
		if ctx.Err() != nil {
			sawCancelled = true
		}
	}}
	builder := NewBuilder(cache, embedder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := builder.EnsureIndexed(ctx, []substack.Post{{ID: "p1", Title: "t", Excerpt: "e"}})

	assert.Equal(t, 1, n)
	assert.False(t, sawCancelled)
}

type ctxCheckingEmbedder struct {
	onCall func(ctx context.Context)
}

func (e *ctxCheckingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.onCall(ctx)
	return []float32{1}, nil
}

func TestWithChunkSize(t *testing.T) {
	cache, _ := newTestCache(t)
	builder := NewBuilder(cache, &fakeEmbedder{}, WithChunkSize(2))

	builder.EnsureIndexed(context.Background(), []substack.Post{{ID: "p1", Title: "t", Excerpt: "e", Content: "a b c d e"}})
	assert.Equal(t, 2+3, cache.Count())
}
