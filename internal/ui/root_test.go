package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/soft-downloader/internal/app"
	"github.com/ytget/soft-downloader/internal/backend"
	"github.com/ytget/soft-downloader/internal/catalog"
	"github.com/ytget/soft-downloader/internal/config"
	"github.com/ytget/soft-downloader/internal/download"
	"github.com/ytget/soft-downloader/internal/model"
	"github.com/ytget/soft-downloader/internal/projection"
)

type pageService struct {
	entries []catalog.Entry
	err     error
}

func (s *pageService) Page(context.Context, string) ([]catalog.Entry, error) {
	return s.entries, s.err
}

var testEntries = []catalog.Entry{
	{Name: "Alfred", URL: "https://example.com/alfred", DownloadLink: "https://cdn.example.com/alfred.dmg"},
	{Name: "Bartender", DownloadLink: "https://cdn.example.com/bartender.dmg"},
}

func newTestRoot(t *testing.T, svc *pageService) (*RootUI, *backend.Loopback, fyne.App) {
	t.Helper()
	a := test.NewTempApp(t)
	w := a.NewWindow("test")
	t.Cleanup(w.Close)

	lb := backend.NewLoopback()
	core := app.NewCore(catalog.NewClient(svc), download.NewOrchestrator(lb, lb), zerolog.Nop())
	require.NoError(t, core.Start(context.Background()))
	t.Cleanup(core.Stop)

	ui := NewRootUI(w, a, core, zerolog.Nop())
	t.Cleanup(ui.Close)
	return ui, lb, a
}

func TestFilterRows(t *testing.T) {
	rows := []projection.Row{
		{Product: model.Product{Name: "Alfred"}},
		{Product: model.Product{Name: "Bartender"}},
		{Product: model.Product{Name: "bar tools"}},
		{Job: &model.DownloadJob{Product: model.Product{DownloadLink: "https://cdn.example.com/barista.pkg"}}},
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"   ", 4},
		{"BAR", 3},
		{"alf", 1},
		{"barista", 1},
		{"zzz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Len(t, filterRows(rows, tt.query), tt.want)
		})
	}
}

func TestRootUI_LoadsCatalogAndFilters(t *testing.T) {
	ui, _, _ := newTestRoot(t, &pageService{entries: testEntries})

	require.NoError(t, ui.LoadCatalog(context.Background()))
	ui.refreshSnapshot()

	assert.Len(t, ui.visible, 2)
	assert.Equal(t, 2, ui.productList.Length())
	assert.False(t, ui.bannerContainer.Visible())

	test.Type(ui.searchEntry, "bart")
	require.Len(t, ui.visible, 1)
	assert.Equal(t, "Bartender", ui.visible[0].Product.Name)

	ui.searchEntry.SetText("")
	assert.Len(t, ui.visible, 2)
}

func TestRootUI_CatalogFailureShowsBanner(t *testing.T) {
	ui, _, _ := newTestRoot(t, &pageService{err: errors.New("503")})

	err := ui.LoadCatalog(context.Background())
	require.ErrorIs(t, err, catalog.ErrCatalogUnavailable)

	assert.True(t, ui.bannerContainer.Visible())
	assert.True(t, strings.HasPrefix(ui.bannerLabel.Text, "Catalog unavailable"))
	assert.Empty(t, ui.visible)
}

func TestRootUI_DownloadAndProgress(t *testing.T) {
	ui, lb, _ := newTestRoot(t, &pageService{entries: testEntries})
	require.NoError(t, ui.LoadCatalog(context.Background()))
	ui.refreshSnapshot()

	product := ui.visible[0].Product
	ui.onDownload(product)

	require.Eventually(t, func() bool { return len(lb.Requests()) == 1 }, 2*time.Second, 10*time.Millisecond)
	id := lb.Requests()[0].DownloadID

	require.NoError(t, lb.Publish(backend.ChannelProgress, map[string]any{"download_id": id, "percentage": 60}))
	require.Eventually(t, func() bool {
		row := ui.core.Snapshot().Rows[0]
		return row.Job != nil && row.Job.Status == model.JobStatusInProgress
	}, 2*time.Second, 10*time.Millisecond)

	ui.refreshSnapshot()
	assert.True(t, ui.hasActiveJob(product))
	assert.True(t, ui.activeLabel.Visible())
	assert.Equal(t, "Active downloads: 1", ui.activeLabel.Text)

	// a second click with confirmation disabled goes straight to the backend
	ui.settings.SetConfirmDuplicate(false)
	ui.onDownload(product)
	require.Eventually(t, func() bool { return len(lb.Requests()) == 2 }, 2*time.Second, 10*time.Millisecond)
	second := lb.Requests()[1].DownloadID

	// both jobs for the product get their own row
	require.Eventually(t, func() bool { return ui.core.Snapshot().Active() == 2 }, 2*time.Second, 10*time.Millisecond)
	ui.refreshSnapshot()
	assert.Equal(t, "Active downloads: 2", ui.activeLabel.Text)
	var ids []string
	for _, row := range ui.visible {
		if row.Job != nil {
			ids = append(ids, row.Job.ID)
		}
	}
	assert.Equal(t, []string{id, second}, ids)

	ui.onCancel(id)
	require.Eventually(t, func() bool { return len(lb.Cancels()) == 1 }, 2*time.Second, 10*time.Millisecond)
	job, ok := ui.core.Job(id)
	require.True(t, ok)
	assert.Equal(t, model.ReasonCancelled, job.Reason)
}

func TestRootUI_DuplicateAsksFirst(t *testing.T) {
	ui, lb, _ := newTestRoot(t, &pageService{entries: testEntries})
	require.NoError(t, ui.LoadCatalog(context.Background()))
	ui.refreshSnapshot()

	product := ui.visible[1].Product
	ui.onDownload(product)
	require.Eventually(t, func() bool {
		row := ui.core.Snapshot().Rows[1]
		return row.Job != nil
	}, 2*time.Second, 10*time.Millisecond)
	ui.refreshSnapshot()

	ui.onDownload(product)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, lb.Requests(), 1)
}

func TestRootUI_ToggleTheme(t *testing.T) {
	ui, _, _ := newTestRoot(t, &pageService{})

	assert.Equal(t, config.ThemeDark, ui.settings.GetThemeVariant())
	assert.Equal(t, IconSun, ui.themeBtn.Text)

	test.Tap(ui.themeBtn)
	assert.Equal(t, config.ThemeLight, ui.settings.GetThemeVariant())
	assert.Equal(t, IconMoon, ui.themeBtn.Text)
}

func TestRootUI_OpenPage(t *testing.T) {
	ui, _, _ := newTestRoot(t, &pageService{})

	var opened []string
	ui.openURL = func(url string) error {
		opened = append(opened, url)
		return nil
	}

	ui.onOpenPage("https://example.com/alfred")
	assert.Equal(t, []string{"https://example.com/alfred"}, opened)
}

func TestRootUI_LanguageChange(t *testing.T) {
	ui, _, _ := newTestRoot(t, &pageService{})

	ui.onLanguageChange("pt")
	assert.Equal(t, "pt", ui.settings.GetLanguage())
	assert.Equal(t, "Recarregar", ui.reloadBtn.Text)
	assert.Equal(t, "Buscar programas", ui.searchEntry.PlaceHolder)
}

func TestSettingsDialog_Save(t *testing.T) {
	a := test.NewTempApp(t)
	w := a.NewWindow("test")
	defer w.Close()

	settings := config.NewSettings(a)
	saved := false
	sd := ShowSettingsDialog(w, settings, NewLocalization(), func() { saved = true })

	assert.Equal(t, config.DefaultCatalogPage, sd.pageEntry.Text)
	assert.True(t, sd.confirmCheck.Checked)

	sd.pageEntry.SetText("3")
	sd.confirmCheck.SetChecked(false)
	sd.languageSelect.SetSelected("Русский")
	sd.onSave(true)

	assert.True(t, saved)
	assert.Equal(t, "3", settings.GetCatalogPage())
	assert.False(t, settings.GetConfirmDuplicate())
	assert.Equal(t, "ru", settings.GetLanguage())

	saved = false
	sd.onSave(false)
	assert.False(t, saved)
}

func TestRootUI_DownloadAfterStreamLostShowsBanner(t *testing.T) {
	ui, lb, _ := newTestRoot(t, &pageService{entries: testEntries})
	require.NoError(t, ui.LoadCatalog(context.Background()))
	ui.refreshSnapshot()

	lb.FailSubscriptions(errors.New("broker unreachable"))
	lb.Disconnect(errors.New("connection reset"))

	product := ui.visible[0].Product
	require.Eventually(t, func() bool {
		return ui.core.Download(context.Background(), product).Reason == model.ReasonStreamLost
	}, 2*time.Second, 10*time.Millisecond)

	ui.refreshSnapshot()
	assert.True(t, ui.bannerContainer.Visible())
	assert.Equal(t, "Connection to the download backend was lost", ui.bannerLabel.Text)
}

func TestAppIcon_IsBundledPNG(t *testing.T) {
	require.NotEmpty(t, AppIcon.Content())
	assert.Equal(t, "soft-downloader.png", AppIcon.Name())
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), AppIcon.Content()[:8])
}
