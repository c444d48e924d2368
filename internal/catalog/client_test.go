package catalog

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/soft-downloader/internal/model"
)

type stubService struct {
	entries []Entry
	err     error
	calls   int
}

func (s *stubService) Page(_ context.Context, _ string) ([]Entry, error) {
	s.calls++
	return s.entries, s.err
}

func TestClient_FetchPage(t *testing.T) {
	svc := &stubService{entries: []Entry{
		{Name: " Sketch ", Description: "design", URL: "https://example.com/sketch", DownloadLink: "https://cdn.example.com/sketch.dmg"},
		{Name: "Sketch", DownloadLink: "https://cdn.example.com/sketch-beta.dmg"},
	}}
	client := NewClient(svc)

	seq, err := client.FetchPage(context.Background(), "1")
	require.NoError(t, err)

	products := slices.Collect(seq)
	assert.Equal(t, []model.Product{
		{Name: "Sketch", Description: "design", URL: "https://example.com/sketch", DownloadLink: "https://cdn.example.com/sketch.dmg"},
		{Name: "Sketch", DownloadLink: "https://cdn.example.com/sketch-beta.dmg"},
	}, products)
	assert.Equal(t, 1, svc.calls)

	// the sequence can be ranged again without another call
	assert.Len(t, slices.Collect(seq), 2)
	assert.Equal(t, 1, svc.calls)
}

func TestClient_FetchPageEmpty(t *testing.T) {
	seq, err := NewClient(&stubService{}).FetchPage(context.Background(), "9")
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestClient_FetchPageErrors(t *testing.T) {
	tests := []struct {
		name string
		svc  *stubService
	}{
		{"service error", &stubService{err: errors.New("connection refused")}},
		{"missing name", &stubService{entries: []Entry{{DownloadLink: "https://x/y"}}}},
		{"missing download link", &stubService{entries: []Entry{{Name: "Tool", DownloadLink: "  "}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := NewClient(tt.svc).FetchPage(context.Background(), "1")
			assert.ErrorIs(t, err, ErrCatalogUnavailable)
			assert.Nil(t, seq)
			assert.Equal(t, 1, tt.svc.calls)
		})
	}
}
