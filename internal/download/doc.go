// Package download orchestrates download jobs performed by the native
// backend. The Orchestrator owns the job table keyed by download id, issues
// backend requests, and runs a long-lived subscriber that decodes
// DOWNLOAD_PROGRESS, DOWNLOAD_FINISHED and DOWNLOAD_FAILED notifications and
// applies them to the matching job. Notifications may arrive in any order;
// terminal jobs ignore further progress.
package download
