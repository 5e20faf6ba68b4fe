package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "embeddings-cache.json"))

	records, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, store.UpdatedAt().IsZero())
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings-cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	records, err := NewStore(path).Load()
	assert.Error(t, err)
	assert.Empty(t, records)
}

func TestStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "embeddings-cache.json")
	store := NewStore(path)

	records := []EmbeddingRecord{
		{PostID: "p1", Embedding: []float32{0.5, -0.25}, Text: "AI and the Future", Section: SectionTitle},
		{PostID: "p1", Embedding: []float32{}, Text: "an excerpt", Section: SectionExcerpt},
	}
	require.NoError(t, store.Save(records))
	assert.False(t, store.UpdatedAt().IsZero())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"postId": "p1"`)
	assert.Contains(t, string(raw), `"embedding": []`)
	assert.Contains(t, string(raw), `"section": "excerpt"`)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	t.Run("save overwrites previous contents", func(t *testing.T) {
		require.NoError(t, store.Save(records[:1]))
		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Len(t, loaded, 1)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temp files left behind")
	})

	t.Run("nil saves an empty array", func(t *testing.T) {
		require.NoError(t, store.Save(nil))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(raw))
	})
}

func TestStoreSaveUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	store := NewStore(filepath.Join(blocker, "embeddings-cache.json"))
	assert.Error(t, store.Save([]EmbeddingRecord{{PostID: "p1"}}))
}
