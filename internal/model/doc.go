package model

// Package model defines domain data structures used across the app: catalog
// products, download jobs, progress snapshots and the typed notifications the
// backend pushes. Jobs carry explicit state transitions; readers get clones.
