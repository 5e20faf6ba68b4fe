package substack

// Post is one newsletter item. ID is stable across runs and keys the
// embedding cache.
type Post struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Excerpt    string   `json:"excerpt"`
	Link       string   `json:"link"`
	PubDate    string   `json:"pubDate"`
	ISODate    string   `json:"isoDate,omitempty"`
	Author     string   `json:"author"`
	Categories []string `json:"categories"`
	Image      string   `json:"image,omitempty"`
}
