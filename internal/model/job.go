package model

import (
	"fmt"
	"strings"
	"time"
)

// DownloadJob represents one tracked download attempt
type DownloadJob struct {
	ID         string
	Product    Product
	Status     JobStatus
	Progress   *ProgressSnapshot // nil until the first progress notification
	Reason     FailureReason     // set when Status is Failed
	LastError  string            // last error message if any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

// Clone returns a deep copy of the job
func (j *DownloadJob) Clone() DownloadJob {
	c := *j
	if j.Progress != nil {
		p := *j.Progress
		c.Progress = &p
	}
	return c
}

// Percent returns the last known percentage as an integer, 0 if none
func (j *DownloadJob) Percent() int {
	if j.Progress == nil {
		return 0
	}
	return int(j.Progress.Fraction() * 100)
}

// GetETAString returns ETA formatted as hh:mm:ss, or "—" if unknown
func (j *DownloadJob) GetETAString() string {
	eta := -1
	if j.Progress != nil {
		eta = j.Progress.ETASeconds()
	}
	if eta <= 0 {
		return "—"
	}

	hours := eta / 3600
	minutes := (eta % 3600) / 60
	seconds := eta % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetSpeedString returns the transfer rate in a human readable form
func (j *DownloadJob) GetSpeedString() string {
	if j.Progress == nil || j.Progress.TransferRate <= 0 {
		return "—"
	}
	return fmt.Sprintf("%.1fMB/s", j.Progress.TransferRate/1024/1024)
}

// GetDisplayTitle returns product name, the last path segment of the link, or the link itself
func (j *DownloadJob) GetDisplayTitle() string {
	if name := strings.TrimSpace(j.Product.Name); name != "" {
		return name
	}

	link := strings.TrimRight(j.Product.DownloadLink, "/")
	if idx := strings.LastIndex(link, "/"); idx >= 0 && idx < len(link)-1 {
		return link[idx+1:]
	}
	return link
}
