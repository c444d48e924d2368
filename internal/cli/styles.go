package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ytget/soft-downloader/internal/model"
)

// Terminal palette
const (
	colorAccent  = lipgloss.Color("#4ade80")
	colorMuted   = lipgloss.Color("#909090")
	colorError   = lipgloss.Color("#ef4444")
	colorWarning = lipgloss.Color("#f59e0b")
	colorText    = lipgloss.Color("#ffffff")

	progressWidth = 24
	nameWidth     = 22
)

// styles holds the lipgloss styles used for command output
type styles struct {
	Title   lipgloss.Style
	Name    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Bar     lipgloss.Style
}

func newStyles() styles {
	return styles{
		Title:   lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Name:    lipgloss.NewStyle().Foreground(colorText).Bold(true).Width(nameWidth),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Success: lipgloss.NewStyle().Foreground(colorAccent),
		Error:   lipgloss.NewStyle().Foreground(colorError),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Bar:     lipgloss.NewStyle().Foreground(colorAccent),
	}
}

// product renders one catalog entry as name, description and link lines
func (s styles) product(index int, p model.Product) string {
	head := lipgloss.JoinHorizontal(lipgloss.Top,
		s.Muted.Render(fmt.Sprintf("%2d. ", index)),
		s.Name.Render(p.Name),
		s.Muted.Render(p.Description),
	)
	return lipgloss.JoinVertical(lipgloss.Left, head, s.Muted.Render("    "+p.DownloadLink))
}

// jobLine renders the state of job on one line
func (s styles) jobLine(job model.DownloadJob) string {
	name := s.Name.Render(job.GetDisplayTitle())

	switch job.Status {
	case model.JobStatusRequested:
		return name + s.Muted.Render(progressBar(0, progressWidth)+" waiting")
	case model.JobStatusInProgress:
		fraction := 0.0
		if job.Progress != nil {
			fraction = job.Progress.Fraction()
		}
		return fmt.Sprintf("%s%s %3d%% %s", name,
			s.Bar.Render(progressBar(fraction, progressWidth)),
			job.Percent(),
			s.Muted.Render(job.GetSpeedString()+" · "+job.GetETAString()))
	case model.JobStatusCompleted:
		return name + s.Success.Render(progressBar(1, progressWidth)+" done")
	default:
		if job.Reason == model.ReasonCancelled {
			return name + s.Warning.Render("cancelled")
		}
		msg := string(job.Reason)
		if job.LastError != "" {
			msg += ": " + job.LastError
		}
		return name + s.Error.Render("failed ("+msg+")")
	}
}

// progressBar draws fraction as a fixed width bar
func progressBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
