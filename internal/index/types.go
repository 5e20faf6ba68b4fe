package index

// Section names which part of a post an embedding was computed from.
type Section string

const (
	SectionTitle   Section = "title"
	SectionExcerpt Section = "excerpt"
	SectionContent Section = "content"
)

// EmbeddingRecord is one embedded chunk of a post. Records are never
// modified once created. An empty Embedding marks a chunk whose embedding
// call failed.
type EmbeddingRecord struct {
	PostID    string    `json:"postId"`
	Embedding []float32 `json:"embedding"`
	Text      string    `json:"text"`
	Section   Section   `json:"section"`
}
