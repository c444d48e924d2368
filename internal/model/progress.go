package model

// ProgressSnapshot is the latest transfer state reported for one download.
// Percentage is computed by the backend and is not required to match
// Transferred/FileSize.
type ProgressSnapshot struct {
	DownloadID   string  `json:"download_id"`
	FileSize     uint64  `json:"filesize"`
	Transferred  uint64  `json:"transferred"`
	TransferRate float64 `json:"transfer_rate"` // bytes per second
	Percentage   float64 `json:"percentage"`    // 0 to 100
}

// Fraction returns Percentage scaled to 0.0..1.0 and clamped, suitable for progress bars
func (p ProgressSnapshot) Fraction() float64 {
	f := p.Percentage / 100
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ETASeconds estimates the remaining time from the current rate, -1 if unknown
func (p ProgressSnapshot) ETASeconds() int {
	if p.TransferRate <= 0 || p.FileSize == 0 || p.Transferred >= p.FileSize {
		return -1
	}
	remaining := float64(p.FileSize - p.Transferred)
	return int(remaining / p.TransferRate)
}

// Completion signals that a download finished. HasID is false when the
// payload carried no identifying field and the target job must be guessed.
type Completion struct {
	DownloadID string
	HasID      bool
}

// Failure is an explicit transfer error reported by the backend for one job
type Failure struct {
	DownloadID string
	Message    string
}
