package ui

import "time"

// UI-wide constants to avoid magic numbers/strings scattered across the codebase.

// Icons (emojis/symbols)
const (
	IconSettings = "⚙"
	IconPlay     = "▶"
	IconError    = "❌"
	IconDone     = "✔"
	IconWaiting  = "⏳"
	IconCancel   = "⏹"
	IconSun      = "☀"
	IconMoon     = "☾"
	IconLink     = "🔗"
)

// Text fragments
const (
	MiddleDotSeparator  = " · "
	DashPlaceholder     = "—"
	ProgressLabelFormat = "%d%%"
)

// Layout sizing (ProductRow / lists)
const (
	StatusLabelWidth  float32 = 110
	SpeedLabelWidth   float32 = 140
	PercentLabelWidth float32 = 48

	RowMinWidth  float32 = 400
	RowMinHeight float32 = 72

	LogoSize float32 = 32
)

// Window sizing
const (
	WindowWidth  float32 = 900
	WindowHeight float32 = 640
)

// Banner behavior
const (
	BannerAutoHide = 5 * time.Second
)

// Timeouts for calls made from UI callbacks
const (
	CatalogLoadTimeout = 30 * time.Second
	CancelTimeout      = 10 * time.Second
)
