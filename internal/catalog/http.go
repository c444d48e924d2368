package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds each HTTP request to the catalog
	DefaultTimeout = 15 * time.Second

	// DefaultConcurrency caps parallel link resolutions for one page
	DefaultConcurrency = 4

	maxBodySize = 8 << 20
)

// HTTPConfig configures HTTPService
type HTTPConfig struct {
	BaseURL      string
	Timeout      time.Duration
	ResolveLinks bool // treat download_link as a slug and resolve it via {base}/links/{slug}
	Concurrency  int
	UserAgent    string
}

// HTTPService reads catalog pages from a JSON HTTP endpoint
type HTTPService struct {
	client *http.Client
	cfg    HTTPConfig
}

// NewHTTPService creates an HTTP catalog service
func NewHTTPService(cfg HTTPConfig) *HTTPService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "soft-downloader"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPService{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Page fetches GET {base}?page=N and optionally resolves every download link
func (s *HTTPService) Page(ctx context.Context, page string) ([]Entry, error) {
	if s.cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog url is not configured")
	}

	var entries []Entry
	if err := s.getJSON(ctx, s.cfg.BaseURL+"?page="+url.QueryEscape(page), &entries); err != nil {
		return nil, err
	}

	if !s.cfg.ResolveLinks {
		return entries, nil
	}
	if err := s.resolveLinks(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// resolveLinks replaces each slug in place, so catalog order is kept
func (s *HTTPService) resolveLinks(ctx context.Context, entries []Entry) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range entries {
		slug := strings.TrimSpace(entries[i].DownloadLink)
		if slug == "" {
			continue
		}
		g.Go(func() error {
			var resolved struct {
				URL string `json:"url"`
			}
			if err := s.getJSON(ctx, s.cfg.BaseURL+"/links/"+url.PathEscape(slug), &resolved); err != nil {
				return fmt.Errorf("failed to resolve link %q: %w", slug, err)
			}
			entries[i].DownloadLink = unquote(resolved.URL)
			return nil
		})
	}
	return g.Wait()
}

func (s *HTTPService) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// unquote strips the JSON quotes some link resolvers leave around URLs
func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
