package model

// JobStatus represents the status of a download job
type JobStatus string

const (
	// JobStatusRequested means the job was created and the backend request issued,
	// but no progress notification has arrived yet
	JobStatusRequested JobStatus = "Requested"

	// JobStatusInProgress means at least one progress notification was applied
	JobStatusInProgress JobStatus = "InProgress"

	// JobStatusCompleted means the backend reported the download finished
	JobStatusCompleted JobStatus = "Completed"

	// JobStatusFailed means the job failed; see FailureReason for why
	JobStatusFailed JobStatus = "Failed"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsActive returns true if the job still expects notifications from the backend
func (s JobStatus) IsActive() bool {
	return s == JobStatusRequested || s == JobStatusInProgress
}

// IsTerminal returns true if the job accepts no further transitions
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// FailureReason explains why a job ended in JobStatusFailed
type FailureReason string

const (
	ReasonNone FailureReason = ""

	// ReasonRequestRejected means the backend refused the download request synchronously
	ReasonRequestRejected FailureReason = "RequestRejected"

	// ReasonStreamLost means the notification stream was lost and could not be re-established
	ReasonStreamLost FailureReason = "StreamLost"

	// ReasonCancelled means the user cancelled the download
	ReasonCancelled FailureReason = "Cancelled"

	// ReasonBackendError means the backend reported a transfer error for this job
	ReasonBackendError FailureReason = "BackendError"
)

// String returns the string representation of FailureReason
func (r FailureReason) String() string {
	return string(r)
}
