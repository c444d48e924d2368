package catalog

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/ytget/soft-downloader/internal/logging"
	"github.com/ytget/soft-downloader/internal/model"
)

// Client maps catalog service pages into products
type Client struct {
	service Service
}

// NewClient creates a client over service
func NewClient(service Service) *Client {
	return &Client{service: service}
}

// FetchPage performs exactly one service call for page. The whole page is
// validated before the sequence is returned, so ranging over it never fails.
func (c *Client) FetchPage(ctx context.Context, page string) (iter.Seq[model.Product], error) {
	log := logging.FromContext(ctx)

	entries, err := c.service.Page(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("%w: page %q: %w", ErrCatalogUnavailable, page, err)
	}

	products := make([]model.Product, 0, len(entries))
	for i, e := range entries {
		p, err := toProduct(e)
		if err != nil {
			return nil, fmt.Errorf("%w: page %q entry %d: %w", ErrCatalogUnavailable, page, i, err)
		}
		products = append(products, p)
	}

	log.Debug().Str("page", page).Int("products", len(products)).Msg("catalog page fetched")
	return slices.Values(products), nil
}

func toProduct(e Entry) (model.Product, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return model.Product{}, fmt.Errorf("missing name")
	}
	if strings.TrimSpace(e.DownloadLink) == "" {
		return model.Product{}, fmt.Errorf("missing download link for %q", name)
	}
	return model.Product{
		Name:         name,
		Description:  e.Description,
		URL:          e.URL,
		DownloadLink: e.DownloadLink,
	}, nil
}
