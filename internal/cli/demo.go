package cli

import (
	"context"
	"strconv"

	"github.com/ytget/soft-downloader/internal/catalog"
)

// demoCatalog serves a fixed two-page catalog for --demo
type demoCatalog struct{}

var demoPages = [][]catalog.Entry{
	{
		{Name: "Archiver", Description: "Pack and unpack every archive format", URL: "https://example.com/archiver", DownloadLink: "https://downloads.example.com/archiver-2.4.dmg"},
		{Name: "Clipboard Manager", Description: "Searchable clipboard history", URL: "https://example.com/clipboard", DownloadLink: "https://downloads.example.com/clipboard-1.9.dmg"},
		{Name: "Disk Inspector", Description: "See what fills your disk", URL: "https://example.com/disk", DownloadLink: "https://downloads.example.com/disk-inspector-3.1.dmg"},
		{Name: "Screen Ruler", Description: "Measure anything on screen", DownloadLink: "https://downloads.example.com/ruler-0.8.dmg"},
	},
	{
		{Name: "Window Tiler", Description: "Keyboard driven window layouts", URL: "https://example.com/tiler", DownloadLink: "https://downloads.example.com/tiler-5.0.dmg"},
		{Name: "Menu Clock", Description: "World clocks in the menu bar", DownloadLink: "https://downloads.example.com/menu-clock-1.2.dmg"},
	},
}

func (demoCatalog) Page(_ context.Context, page string) ([]catalog.Entry, error) {
	n, err := strconv.Atoi(page)
	if err != nil || n < 1 || n > len(demoPages) {
		return nil, nil
	}
	return demoPages[n-1], nil
}
