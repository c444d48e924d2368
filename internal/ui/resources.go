package ui

import (
	_ "embed"

	"fyne.io/fyne/v2"
)

//go:embed soft-downloader.png
var appIconPNG []byte

// AppIcon is the window and header logo, bundled into the binary
var AppIcon = fyne.NewStaticResource("soft-downloader.png", appIconPNG)
