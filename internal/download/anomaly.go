package download

import "time"

// AnomalyKind classifies a discarded notification
type AnomalyKind string

const (
	AnomalyUnknownJob          AnomalyKind = "UnknownJobNotification"
	AnomalyStaleNotification   AnomalyKind = "StaleNotification"
	AnomalyMalformedPayload    AnomalyKind = "MalformedPayload"
	AnomalyAmbiguousCompletion AnomalyKind = "AmbiguousCompletion"
	AnomalyUnknownChannel      AnomalyKind = "UnknownChannel"
)

// maxAnomalies bounds the retained anomaly history
const maxAnomalies = 100

// Anomaly is a notification that was logged and discarded without changing job state
type Anomaly struct {
	Kind       AnomalyKind
	DownloadID string
	Channel    string
	Detail     string
	At         time.Time
}
