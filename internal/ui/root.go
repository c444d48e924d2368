package ui

import (
	"context"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/ytget/soft-downloader/internal/app"
	"github.com/ytget/soft-downloader/internal/config"
	"github.com/ytget/soft-downloader/internal/model"
	"github.com/ytget/soft-downloader/internal/platform"
	"github.com/ytget/soft-downloader/internal/projection"
)

// RootUI represents the main window: header, banner and product list
type RootUI struct {
	window       fyne.Window
	app          fyne.App
	core         *app.Core
	settings     *config.Settings
	localization *Localization
	logger       zerolog.Logger

	// openURL hands product pages to the system browser
	openURL func(string) error

	searchEntry *widget.Entry
	reloadBtn   *widget.Button
	themeBtn    *widget.Button
	activeLabel *widget.Label
	productList *widget.List

	// Notification banner under the header
	bannerContainer *fyne.Container
	bannerLabel     *widget.Label
	bannerSpinner   *widget.ProgressBarInfinite

	// touched only on the UI thread
	snapshot   projection.Snapshot
	visible    []projection.Row
	filter     string
	lastStatus map[string]model.JobStatus

	unsubscribe func()
}

// NewRootUI creates the main UI and starts following core snapshots
func NewRootUI(window fyne.Window, fyneApp fyne.App, core *app.Core, logger zerolog.Logger) *RootUI {
	settings := config.NewSettings(fyneApp)

	localization := NewLocalization()
	localization.SetLanguage(settings.GetLanguage())

	ui := &RootUI{
		window:       window,
		app:          fyneApp,
		core:         core,
		settings:     settings,
		localization: localization,
		logger:       logger.With().Str("component", "ui").Logger(),
		openURL:      platform.OpenURL,
		lastStatus:   make(map[string]model.JobStatus),
	}

	fyneApp.Settings().SetTheme(NewCompactTheme(settings.GetThemeVariant()))
	window.SetTitle(localization.GetText(KeyAppTitle))

	ui.setupUI()

	ui.unsubscribe = core.Subscribe(func(projection.Snapshot) {
		// re-read instead of using the pushed value so that late pushes never
		// overwrite a newer view
		fyne.Do(ui.refreshSnapshot)
	})
	ui.refreshSnapshot()
	return ui
}

// Close stops following core snapshots
func (ui *RootUI) Close() {
	if ui.unsubscribe != nil {
		ui.unsubscribe()
		ui.unsubscribe = nil
	}
}

// setupUI creates and arranges all UI components
func (ui *RootUI) setupUI() {
	ui.createMenu()

	ui.searchEntry = widget.NewEntry()
	ui.searchEntry.SetPlaceHolder(ui.localization.GetText(KeySearch))
	ui.searchEntry.OnChanged = ui.onSearchChanged

	ui.reloadBtn = widget.NewButton(ui.localization.GetText(KeyReload), ui.Reload)

	ui.themeBtn = widget.NewButton(themeIcon(ui.settings.GetThemeVariant()), ui.onToggleTheme)
	ui.themeBtn.Importance = widget.LowImportance

	settingsBtn := widget.NewButton(IconSettings, ui.onShowSettings)
	settingsBtn.Importance = widget.LowImportance

	ui.activeLabel = widget.NewLabel("")
	ui.activeLabel.Importance = widget.HighImportance
	ui.activeLabel.Hide()

	logoImage := canvas.NewImageFromResource(AppIcon)
	logoImage.SetMinSize(fyne.NewSize(LogoSize, LogoSize))
	logoImage.FillMode = canvas.ImageFillContain
	left := container.NewHBox(logoImage, settingsBtn, ui.themeBtn)
	header := container.NewBorder(nil, nil, left, container.NewHBox(ui.activeLabel, ui.reloadBtn), ui.searchEntry)

	ui.bannerLabel = widget.NewLabel("")
	ui.bannerLabel.Wrapping = fyne.TextWrapWord
	ui.bannerSpinner = widget.NewProgressBarInfinite()
	ui.bannerSpinner.Hide()
	ui.bannerContainer = container.NewBorder(nil, nil, ui.bannerSpinner, nil, ui.bannerLabel)
	ui.bannerContainer.Hide()

	ui.productList = widget.NewList(
		func() int { return len(ui.visible) },
		ui.createProductItem,
		ui.updateProductItem,
	)

	content := container.NewBorder(
		container.NewVBox(header, ui.bannerContainer), // top
		nil, // bottom
		nil, // left
		nil, // right
		ui.productList,
	)
	ui.window.SetContent(content)
}

// createMenu creates the application menu
func (ui *RootUI) createMenu() {
	settingsItem := fyne.NewMenuItem(ui.localization.GetText(KeySettings), ui.onShowSettings)
	reloadItem := fyne.NewMenuItem(ui.localization.GetText(KeyReload), ui.Reload)
	themeItem := fyne.NewMenuItem(ui.localization.GetText(KeyTheme), ui.onToggleTheme)

	languageMenu := fyne.NewMenu(ui.localization.GetText(KeyLanguage))
	for code, name := range ui.localization.GetAvailableLanguages() {
		langItem := fyne.NewMenuItem(name, func() {
			ui.onLanguageChange(code)
		})
		langItem.Checked = ui.localization.GetCurrentLanguage() == code
		languageMenu.Items = append(languageMenu.Items, langItem)
	}

	mainMenu := fyne.NewMainMenu(
		fyne.NewMenu(ui.localization.GetText(KeyFile), reloadItem, themeItem, settingsItem),
		languageMenu,
	)
	ui.window.SetMainMenu(mainMenu)
}

// onLanguageChange handles language change
func (ui *RootUI) onLanguageChange(langCode string) {
	ui.localization.SetLanguage(langCode)
	ui.settings.SetLanguage(langCode)
	ui.refreshUITexts()
	ui.createMenu()
}

// refreshUITexts updates all UI texts with current language
func (ui *RootUI) refreshUITexts() {
	ui.window.SetTitle(ui.localization.GetText(KeyAppTitle))
	ui.searchEntry.SetPlaceHolder(ui.localization.GetText(KeySearch))
	ui.reloadBtn.SetText(ui.localization.GetText(KeyReload))
	ui.updateActiveSummary()
	ui.productList.Refresh()
}

// Reload fetches the configured catalog page in the background
func (ui *RootUI) Reload() {
	ui.showBanner(ui.localization.GetText(KeyLoadingCatalog), true)
	ui.reloadBtn.Disable()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), CatalogLoadTimeout)
		defer cancel()

		err := ui.LoadCatalog(ctx)
		fyne.Do(func() {
			ui.reloadBtn.Enable()
			if err == nil {
				ui.hideBanner()
			}
		})
	}()
}

// LoadCatalog fetches the configured catalog page. A failure keeps the
// current list and leaves the error in the banner.
func (ui *RootUI) LoadCatalog(ctx context.Context) error {
	page := ui.settings.GetCatalogPage()
	if _, err := ui.core.LoadCatalog(ctx, page); err != nil {
		ui.logger.Warn().Err(err).Str("page", page).Msg("catalog load failed")
		msg := fmt.Sprintf("%s: %v", ui.localization.GetText(KeyCatalogUnavailable), err)
		fyne.Do(func() { ui.showBanner(msg, false) })
		return err
	}
	return nil
}

// refreshSnapshot re-reads the core snapshot and redraws the list
func (ui *RootUI) refreshSnapshot() {
	ui.snapshot = ui.core.Snapshot()
	ui.visible = filterRows(ui.snapshot.Rows, ui.filter)
	ui.notifyTransitions(ui.snapshot)
	ui.updateActiveSummary()
	ui.productList.Refresh()
}

// onSearchChanged narrows the list to products whose name contains query
func (ui *RootUI) onSearchChanged(query string) {
	ui.filter = query
	ui.visible = filterRows(ui.snapshot.Rows, ui.filter)
	ui.productList.Refresh()
}

// filterRows keeps rows whose display name contains query, ignoring case
func filterRows(rows []projection.Row, query string) []projection.Row {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}

	var out []projection.Row
	for _, row := range rows {
		name := row.Product.Name
		if row.Job != nil {
			name = row.Job.GetDisplayTitle()
		}
		if strings.Contains(strings.ToLower(name), query) {
			out = append(out, row)
		}
	}
	return out
}

func (ui *RootUI) updateActiveSummary() {
	active := ui.snapshot.Active()
	if active == 0 {
		ui.activeLabel.Hide()
		return
	}
	ui.activeLabel.SetText(fmt.Sprintf(ui.localization.GetText(KeyActiveDownloads), active))
	ui.activeLabel.Show()
}

// notifyTransitions sends system notifications for jobs that reached a
// terminal state since the previous snapshot
func (ui *RootUI) notifyTransitions(snap projection.Snapshot) {
	seen := make(map[string]model.JobStatus, len(ui.lastStatus))
	streamLost := false

	for _, row := range snap.Rows {
		job := row.Job
		if job == nil {
			continue
		}
		seen[job.ID] = job.Status

		prev, known := ui.lastStatus[job.ID]
		if known && prev == job.Status || !job.Status.IsTerminal() {
			continue
		}
		// a job created after the stream was lost is born failed
		if !known && job.Reason != model.ReasonStreamLost {
			continue
		}

		switch {
		case job.Status == model.JobStatusCompleted:
			ui.sendNotification(KeyDownloadCompleted, job.GetDisplayTitle())
		case job.Reason == model.ReasonStreamLost:
			streamLost = true
		case job.Reason != model.ReasonCancelled:
			ui.sendNotification(KeyDownloadFailed, job.GetDisplayTitle())
		}
	}
	ui.lastStatus = seen

	if streamLost {
		ui.showBanner(ui.localization.GetText(KeyStreamLost), false)
	}
}

func (ui *RootUI) sendNotification(titleKey, content string) {
	ui.app.SendNotification(&fyne.Notification{
		Title:   ui.localization.GetText(titleKey),
		Content: content,
	})
}

// showBanner displays message under the header. When spinning is true, a
// spinner is shown to indicate background activity.
func (ui *RootUI) showBanner(message string, spinning bool) {
	ui.bannerLabel.SetText(message)
	if spinning {
		ui.bannerSpinner.Show()
	} else {
		ui.bannerSpinner.Hide()
	}
	ui.bannerContainer.Show()
	ui.bannerContainer.Refresh()
}

// hideBanner hides the notification banner
func (ui *RootUI) hideBanner() {
	ui.bannerSpinner.Hide()
	ui.bannerContainer.Hide()
}

// onToggleTheme flips between the light and dark palette
func (ui *RootUI) onToggleTheme() {
	variant := ui.settings.ToggleThemeVariant()
	ui.app.Settings().SetTheme(NewCompactTheme(variant))
	ui.themeBtn.SetText(themeIcon(variant))
}

func themeIcon(v config.ThemeVariant) string {
	if v == config.ThemeLight {
		return IconMoon
	}
	return IconSun
}

// onShowSettings shows the settings dialog
func (ui *RootUI) onShowSettings() {
	page := ui.settings.GetCatalogPage()
	ShowSettingsDialog(ui.window, ui.settings, ui.localization, func() {
		ui.localization.SetLanguage(ui.settings.GetLanguage())
		ui.refreshUITexts()
		ui.createMenu()
		if ui.settings.GetCatalogPage() != page {
			ui.Reload()
		}
	})
}

// createProductItem creates a list item widget
func (ui *RootUI) createProductItem() fyne.CanvasObject {
	row := NewProductRow(projection.Row{}, ui.localization)
	row.SetCallbacks(ui.onDownload, ui.onCancel, ui.onOpenPage)
	return row
}

// updateProductItem binds a list item to the visible row with index id
func (ui *RootUI) updateProductItem(id widget.ListItemID, item fyne.CanvasObject) {
	if id < 0 || id >= len(ui.visible) {
		return
	}
	if row, ok := item.(*ProductRow); ok {
		row.UpdateRow(ui.visible[id])
	}
}

// onDownload starts a download, asking first when the product already has
// an active job and the user wants to be asked
func (ui *RootUI) onDownload(product model.Product) {
	if ui.settings.GetConfirmDuplicate() && ui.hasActiveJob(product) {
		msg := fmt.Sprintf(ui.localization.GetText(KeyDuplicateMessage), product.Name)
		dialog.ShowConfirm(ui.localization.GetText(KeyDuplicateTitle), msg, func(ok bool) {
			if ok {
				ui.startDownload(product)
			}
		}, ui.window)
		return
	}
	ui.startDownload(product)
}

func (ui *RootUI) hasActiveJob(product model.Product) bool {
	for _, row := range ui.snapshot.Rows {
		if row.Product == product && row.Job != nil && row.Job.Status.IsActive() {
			return true
		}
	}
	return false
}

// startDownload issues the request off the UI thread; the backend call may block
func (ui *RootUI) startDownload(product model.Product) {
	go func() {
		job := ui.core.Download(context.Background(), product)
		ui.logger.Debug().Str("download_id", job.ID).Str("product", product.Name).Stringer("status", job.Status).Msg("download requested")
	}()
}

// onCancel cancels jobID and reports a failed cancel request
func (ui *RootUI) onCancel(jobID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), CancelTimeout)
		defer cancel()

		if err := ui.core.Cancel(ctx, jobID); err != nil {
			ui.logger.Warn().Err(err).Str("download_id", jobID).Msg("cancel failed")
			fyne.Do(func() {
				dialog.ShowError(fmt.Errorf("%s: %w", ui.localization.GetText(KeyErrorCancelling), err), ui.window)
			})
		}
	}()
}

// onOpenPage opens the product page in the browser
func (ui *RootUI) onOpenPage(url string) {
	if err := ui.openURL(url); err != nil {
		ui.logger.Warn().Err(err).Str("url", url).Msg("failed to open product page")
		dialog.ShowError(fmt.Errorf("%s: %w", ui.localization.GetText(KeyErrorOpeningPage), err), ui.window)
	}
}
