package catalog

import "context"

// Entry is one product record as returned by the catalog service
type Entry struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	DownloadLink string `json:"download_link"`
}

// Service is the external catalog. Page returns the entries of one page token.
type Service interface {
	Page(ctx context.Context, page string) ([]Entry, error)
}
