package domain

// SearchHit is a single ranked search result: the document id, a similarity
// score rounded to 4 decimals (higher is closer), and the stored content.
// Immutable once produced by a backend.
type SearchHit struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]string
}
