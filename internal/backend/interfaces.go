package backend

import (
	"context"
	"encoding/json"
	"errors"
)

// Notification channel names
const (
	ChannelProgress = "DOWNLOAD_PROGRESS"
	ChannelFinished = "DOWNLOAD_FINISHED"
	ChannelFailed   = "DOWNLOAD_FAILED"
)

// Channels lists every channel the download core listens on
var Channels = []string{ChannelProgress, ChannelFinished, ChannelFailed}

var (
	// ErrRejected is wrapped by Requester implementations when the backend refuses a request
	ErrRejected = errors.New("download request rejected")

	// ErrBackendExited means the backend process or connection is gone
	ErrBackendExited = errors.New("backend exited")
)

// Request asks the backend to download URL and report progress under DownloadID
type Request struct {
	DownloadID string `json:"download_id"`
	URL        string `json:"url"`
}

// Event is a raw notification pushed by the backend
type Event struct {
	Channel string
	Payload json.RawMessage
}

// Requester issues commands to the backend. A non-nil error from
// RequestDownload is a synchronous rejection; no notification follows it.
type Requester interface {
	RequestDownload(ctx context.Context, req Request) error
	CancelDownload(ctx context.Context, downloadID string) error
}

// Bus delivers backend notifications
type Bus interface {
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

// Subscription is a live stream of events. Done is closed when the stream
// ends; Err then reports why, nil for an orderly Close.
type Subscription interface {
	Events() <-chan Event
	Done() <-chan struct{}
	Err() error
	Close() error
}
