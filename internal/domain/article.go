package domain

import "context"

// Article is one item of the corpus. Articles are immutable once
// fetched and are identified by the archive's own id.
type Article struct {
	ID          string
	Title       string
	URL         string
	PublishedAt string // ISO8601 string as delivered by the archive
	Body        string
}

// ArticleSource supplies articles for a fixed historical window.
// Pagination and rate limiting are the implementation's concern.
type ArticleSource interface {
	FetchArticles(ctx context.Context, fromDate, toDate string, target int) ([]Article, error)
}
