package config

import (
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
)

// ThemeVariant selects the light or dark palette
type ThemeVariant string

const (
	ThemeLight ThemeVariant = "light"
	ThemeDark  ThemeVariant = "dark"
)

// Settings keys for Fyne preferences
const (
	KeyCatalogPage      = "catalog_page"
	KeyThemeVariant     = "theme_variant"
	KeyConfirmDuplicate = "confirm_duplicate_download"
	KeyLanguage         = "app_language"
)

// Default values
const (
	DefaultCatalogPage      = "1"
	DefaultThemeVariant     = ThemeDark
	DefaultConfirmDuplicate = true
	DefaultLanguage         = "system"
)

// Settings manages per-user UI preferences
type Settings struct {
	app fyne.App
}

// NewSettings creates a new settings manager
func NewSettings(app fyne.App) *Settings {
	return &Settings{app: app}
}

// GetCatalogPage returns the last catalog page the user opened
func (s *Settings) GetCatalogPage() string {
	page := s.app.Preferences().String(KeyCatalogPage)
	if page == "" {
		s.SetCatalogPage(DefaultCatalogPage)
		return DefaultCatalogPage
	}
	return page
}

// SetCatalogPage stores page; anything that is not a positive number resets to the first page
func (s *Settings) SetCatalogPage(page string) {
	page = strings.TrimSpace(page)
	if n, err := strconv.Atoi(page); err != nil || n < 1 {
		page = DefaultCatalogPage
	}
	s.app.Preferences().SetString(KeyCatalogPage, page)
}

// GetThemeVariant returns the configured theme variant
func (s *Settings) GetThemeVariant() ThemeVariant {
	switch v := ThemeVariant(s.app.Preferences().String(KeyThemeVariant)); v {
	case ThemeLight, ThemeDark:
		return v
	default:
		s.SetThemeVariant(DefaultThemeVariant)
		return DefaultThemeVariant
	}
}

// SetThemeVariant sets the theme variant
func (s *Settings) SetThemeVariant(v ThemeVariant) {
	if v != ThemeLight && v != ThemeDark {
		v = DefaultThemeVariant
	}
	s.app.Preferences().SetString(KeyThemeVariant, string(v))
}

// ToggleThemeVariant flips between light and dark and returns the new variant
func (s *Settings) ToggleThemeVariant() ThemeVariant {
	next := ThemeLight
	if s.GetThemeVariant() == ThemeLight {
		next = ThemeDark
	}
	s.SetThemeVariant(next)
	return next
}

// GetConfirmDuplicate returns whether starting a second download of a product asks first
func (s *Settings) GetConfirmDuplicate() bool {
	return s.app.Preferences().BoolWithFallback(KeyConfirmDuplicate, DefaultConfirmDuplicate)
}

// SetConfirmDuplicate sets whether duplicate downloads ask for confirmation
func (s *Settings) SetConfirmDuplicate(confirm bool) {
	s.app.Preferences().SetBool(KeyConfirmDuplicate, confirm)
}

// GetLanguage returns the configured language
func (s *Settings) GetLanguage() string {
	lang := s.app.Preferences().String(KeyLanguage)
	if lang == "" {
		s.SetLanguage(DefaultLanguage)
		return DefaultLanguage
	}
	return lang
}

// SetLanguage sets the application language
func (s *Settings) SetLanguage(lang string) {
	s.app.Preferences().SetString(KeyLanguage, lang)
}

// GetLanguageOptions returns available language options
func (s *Settings) GetLanguageOptions() map[string]string {
	return map[string]string{
		"system": "System Default",
		"en":     "English",
		"ru":     "Русский",
		"pt":     "Português",
	}
}
