// Package ui contains the Fyne-based desktop user interface. It renders the
// catalog snapshot pushed by app.Core, forwards download and cancel clicks
// back to it, and keeps every widget update on the UI thread via fyne.Do.
// All UI strings are localized via Localization.
package ui
