package download

import "errors"

var (
	// ErrJobNotFound is returned for operations on an id the table does not hold
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotActive is returned when cancelling a job that already reached a terminal state
	ErrJobNotActive = errors.New("job is not active")

	// ErrUnknownJob means a notification referenced an id the table does not hold
	ErrUnknownJob = errors.New("notification for unknown job")

	// ErrJobFinished means a notification arrived for a terminal job and was ignored
	ErrJobFinished = errors.New("job already finished")

	// ErrMalformedPayload means a notification payload could not be decoded
	ErrMalformedPayload = errors.New("malformed notification payload")

	// ErrEventStreamInterrupted means the notification subscription ended unexpectedly
	ErrEventStreamInterrupted = errors.New("event stream interrupted")

	// ErrStreamLost means the stream was interrupted and resubscribing failed;
	// every open job has been failed with ReasonStreamLost
	ErrStreamLost = errors.New("event stream lost")

	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("orchestrator already started")
)
