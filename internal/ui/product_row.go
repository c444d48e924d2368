package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/soft-downloader/internal/model"
	"github.com/ytget/soft-downloader/internal/projection"
)

// ProductRow renders one catalog product and the state of its latest job
type ProductRow struct {
	widget.BaseWidget

	row          projection.Row
	localization *Localization

	titleLabel    *widget.Label
	descLabel     *widget.Label
	statusLabel   *widget.Label
	progressBar   *widget.ProgressBar
	progressLabel *widget.Label
	speedEtaLabel *widget.Label
	downloadBtn   *widget.Button
	cancelBtn     *widget.Button
	pageBtn       *widget.Button

	onDownload func(model.Product)
	onCancel   func(jobID string)
	onOpenPage func(url string)
}

// NewProductRow creates a row for row
func NewProductRow(row projection.Row, localization *Localization) *ProductRow {
	pr := &ProductRow{
		row:          row,
		localization: localization,
	}
	pr.ExtendBaseWidget(pr)
	pr.createComponents()
	pr.updateFromRow()
	return pr
}

// SetCallbacks sets the click handlers
func (pr *ProductRow) SetCallbacks(onDownload func(model.Product), onCancel func(string), onOpenPage func(string)) {
	pr.onDownload = onDownload
	pr.onCancel = onCancel
	pr.onOpenPage = onOpenPage
}

// UpdateRow replaces the rendered row
func (pr *ProductRow) UpdateRow(row projection.Row) {
	pr.row = row
	pr.updateFromRow()
	pr.Refresh()
}

// Row returns the rendered row
func (pr *ProductRow) Row() projection.Row {
	return pr.row
}

func (pr *ProductRow) createComponents() {
	pr.titleLabel = widget.NewLabel("")
	pr.titleLabel.TextStyle = fyne.TextStyle{Bold: true}
	pr.titleLabel.Truncation = fyne.TextTruncateEllipsis

	pr.descLabel = widget.NewLabel("")
	pr.descLabel.Truncation = fyne.TextTruncateEllipsis

	pr.statusLabel = widget.NewLabel("")
	pr.progressBar = widget.NewProgressBar()
	pr.progressBar.TextFormatter = func() string { return "" }
	pr.progressLabel = widget.NewLabel("")
	pr.speedEtaLabel = widget.NewLabel("")

	pr.downloadBtn = widget.NewButton(pr.localization.GetText(KeyDownload), func() {
		if pr.onDownload != nil {
			pr.onDownload(pr.row.Product)
		}
	})
	pr.downloadBtn.Importance = widget.HighImportance

	pr.cancelBtn = widget.NewButton(pr.localization.GetText(KeyCancel), func() {
		if pr.onCancel != nil && pr.row.Job != nil {
			pr.onCancel(pr.row.Job.ID)
		}
	})
	pr.cancelBtn.Importance = widget.DangerImportance

	pr.pageBtn = widget.NewButton(IconLink, func() {
		if pr.onOpenPage != nil && pr.row.Product.URL != "" {
			pr.onOpenPage(pr.row.Product.URL)
		}
	})
	pr.pageBtn.Importance = widget.LowImportance
}

// updateFromRow updates widgets from the current row
func (pr *ProductRow) updateFromRow() {
	title := pr.row.Product.Name
	if pr.row.Job != nil {
		title = pr.row.Job.GetDisplayTitle()
	}
	pr.titleLabel.SetText(singleLine(title))
	pr.descLabel.SetText(singleLine(pr.row.Product.Description))

	text, importance := statusText(pr.row.Job, pr.localization)
	pr.statusLabel.Importance = importance
	pr.statusLabel.SetText(text)

	pr.progressBar.SetValue(progressValue(pr.row.Job))
	if job := pr.row.Job; job != nil && job.Status == model.JobStatusInProgress {
		pr.progressLabel.SetText(fmt.Sprintf(ProgressLabelFormat, job.Percent()))
	} else {
		pr.progressLabel.SetText("")
	}
	pr.speedEtaLabel.SetText(speedEtaText(pr.row.Job))

	pr.updateButtons()
}

func (pr *ProductRow) updateButtons() {
	pr.downloadBtn.SetText(pr.localization.GetText(KeyDownload))
	pr.cancelBtn.SetText(pr.localization.GetText(KeyCancel))

	if pr.row.Product.DownloadLink == "" {
		pr.downloadBtn.Disable()
	} else {
		pr.downloadBtn.Enable()
	}

	if pr.row.Job != nil && pr.row.Job.Status.IsActive() {
		pr.cancelBtn.Show()
	} else {
		pr.cancelBtn.Hide()
	}

	if pr.row.Product.URL == "" {
		pr.pageBtn.Hide()
	} else {
		pr.pageBtn.Show()
	}
}

// CreateRenderer lays the row out as title/description on the left,
// progress in the middle and actions on the right
func (pr *ProductRow) CreateRenderer() fyne.WidgetRenderer {
	status := container.NewGridWrap(fyne.NewSize(StatusLabelWidth, pr.statusLabel.MinSize().Height), pr.statusLabel)
	speed := container.NewGridWrap(fyne.NewSize(SpeedLabelWidth, pr.speedEtaLabel.MinSize().Height), pr.speedEtaLabel)
	percent := container.NewGridWrap(fyne.NewSize(PercentLabelWidth, pr.progressLabel.MinSize().Height), pr.progressLabel)

	info := container.NewVBox(pr.titleLabel, pr.descLabel)
	progress := container.NewBorder(nil, nil, nil, percent, pr.progressBar)
	actions := container.NewHBox(status, speed, pr.pageBtn, pr.cancelBtn, pr.downloadBtn)

	content := container.NewBorder(nil, progress, nil, actions, info)
	return widget.NewSimpleRenderer(content)
}

// MinSize keeps rows from collapsing in narrow windows
func (pr *ProductRow) MinSize() fyne.Size {
	size := pr.BaseWidget.MinSize()
	return fyne.NewSize(max(size.Width, RowMinWidth), max(size.Height, RowMinHeight))
}

// statusText returns the status label text and its importance for job
func statusText(job *model.DownloadJob, l *Localization) (string, widget.Importance) {
	if job == nil {
		return l.GetText(KeyNotDownloaded), widget.LowImportance
	}

	switch job.Status {
	case model.JobStatusRequested:
		return IconWaiting + " " + l.GetText(KeyStatusRequested), widget.MediumImportance
	case model.JobStatusInProgress:
		return IconPlay + " " + l.GetText(KeyStatusInProgress), widget.HighImportance
	case model.JobStatusCompleted:
		return IconDone + " " + l.GetText(KeyStatusCompleted), widget.SuccessImportance
	case model.JobStatusFailed:
		switch job.Reason {
		case model.ReasonCancelled:
			return IconCancel + " " + l.GetText(KeyStatusCancelled), widget.WarningImportance
		case model.ReasonStreamLost:
			return IconError + " " + l.GetText(KeyStatusStreamLost), widget.DangerImportance
		case model.ReasonRequestRejected:
			return IconError + " " + l.GetText(KeyStatusRejected), widget.DangerImportance
		}
		return IconError + " " + l.GetText(KeyStatusFailed), widget.DangerImportance
	default:
		return job.Status.String(), widget.MediumImportance
	}
}

// progressValue returns the bar position in 0..1
func progressValue(job *model.DownloadJob) float64 {
	switch {
	case job == nil:
		return 0
	case job.Status == model.JobStatusCompleted:
		return 1
	case job.Progress == nil:
		return 0
	default:
		return job.Progress.Fraction()
	}
}

// speedEtaText returns "rate · eta" while downloading, the error for failed
// jobs and nothing otherwise
func speedEtaText(job *model.DownloadJob) string {
	if job == nil {
		return ""
	}
	switch job.Status {
	case model.JobStatusInProgress:
		return job.GetSpeedString() + MiddleDotSeparator + job.GetETAString()
	case model.JobStatusRequested:
		return DashPlaceholder
	case model.JobStatusFailed:
		return singleLine(job.LastError)
	default:
		return ""
	}
}

// singleLine flattens control whitespace that would break a one-line label
func singleLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s))
}
