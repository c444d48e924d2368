package ui

import (
	"os"
	"strings"
)

// Localization manages UI text translations
type Localization struct {
	currentLanguage string
	texts           map[string]map[string]string
}

// Text keys for localization
const (
	KeyAppTitle           = "app_title"
	KeyDownload           = "download"
	KeyCancel             = "cancel"
	KeySettings           = "settings"
	KeyFile               = "file"
	KeyLanguage           = "language"
	KeyTheme              = "theme"
	KeySave               = "save"
	KeyReload             = "reload"
	KeySearch             = "search"
	KeyCatalogPage        = "catalog_page"
	KeyConfirmDuplicate   = "confirm_duplicate"
	KeyDuplicateTitle     = "duplicate_title"
	KeyDuplicateMessage   = "duplicate_message"
	KeyCatalogUnavailable = "catalog_unavailable"
	KeyLoadingCatalog     = "loading_catalog"
	KeyActiveDownloads    = "active_downloads"
	KeyDownloadCompleted  = "download_completed"
	KeyDownloadFailed     = "download_failed"
	KeySettingsSaved      = "settings_saved"
	KeyErrorCancelling    = "error_cancelling"
	KeyErrorOpeningPage   = "error_opening_page"
	KeyOpenPage           = "open_page"
	KeyNotDownloaded      = "not_downloaded"
	KeyStatusRequested    = "status_requested"
	KeyStatusInProgress   = "status_in_progress"
	KeyStatusCompleted    = "status_completed"
	KeyStatusFailed       = "status_failed"
	KeyStatusCancelled    = "status_cancelled"
	KeyStatusStreamLost   = "status_stream_lost"
	KeyStatusRejected     = "status_rejected"
	KeyStreamLost         = "stream_lost"
)

// NewLocalization creates a new localization manager
func NewLocalization() *Localization {
	l := &Localization{
		currentLanguage: "en",
		texts:           make(map[string]map[string]string),
	}

	l.initializeTexts()
	return l
}

// SetLanguage sets the current language. "system" picks the language from
// LANG when a translation exists for it.
func (l *Localization) SetLanguage(lang string) {
	if lang == "system" {
		lang = systemLanguage()
	}

	if _, exists := l.texts[lang]; exists {
		l.currentLanguage = lang
	}
}

func systemLanguage() string {
	locale := os.Getenv("LANG")
	if i := strings.IndexAny(locale, "_.@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "" || locale == "C" || locale == "POSIX" {
		return "en"
	}
	return strings.ToLower(locale)
}

// GetText returns localized text for the given key
func (l *Localization) GetText(key string) string {
	if texts, exists := l.texts[l.currentLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	// Fallback to English
	if texts, exists := l.texts["en"]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	return key
}

// GetCurrentLanguage returns the current language code
func (l *Localization) GetCurrentLanguage() string {
	return l.currentLanguage
}

// GetAvailableLanguages returns map of available languages with their display names
func (l *Localization) GetAvailableLanguages() map[string]string {
	return map[string]string{
		"en": "English",
		"ru": "Русский",
		"pt": "Português",
	}
}

// initializeTexts initializes all text translations
func (l *Localization) initializeTexts() {
	l.texts["en"] = map[string]string{
		KeyAppTitle:           "Soft Downloader",
		KeyDownload:           "Download",
		KeyCancel:             "Cancel",
		KeySettings:           "Settings",
		KeyFile:               "File",
		KeyLanguage:           "Language",
		KeyTheme:              "Toggle theme",
		KeySave:               "Save",
		KeyReload:             "Reload",
		KeySearch:             "Search products",
		KeyCatalogPage:        "Catalog page",
		KeyConfirmDuplicate:   "Ask before downloading a product twice",
		KeyDuplicateTitle:     "Already downloading",
		KeyDuplicateMessage:   "%s is already being downloaded. Start another download?",
		KeyCatalogUnavailable: "Catalog unavailable",
		KeyLoadingCatalog:     "Loading catalog...",
		KeyActiveDownloads:    "Active downloads: %d",
		KeyDownloadCompleted:  "Download completed",
		KeyDownloadFailed:     "Download failed",
		KeySettingsSaved:      "Settings saved successfully!",
		KeyErrorCancelling:    "Error cancelling download",
		KeyErrorOpeningPage:   "Error opening product page",
		KeyOpenPage:           "Open product page",
		KeyNotDownloaded:      "Not downloaded",
		KeyStatusRequested:    "Requested",
		KeyStatusInProgress:   "Downloading",
		KeyStatusCompleted:    "Completed",
		KeyStatusFailed:       "Failed",
		KeyStatusCancelled:    "Cancelled",
		KeyStatusStreamLost:   "Connection lost",
		KeyStatusRejected:     "Rejected",
		KeyStreamLost:         "Connection to the download backend was lost",
	}

	l.texts["ru"] = map[string]string{
		KeyAppTitle:           "Загрузчик программ",
		KeyDownload:           "Скачать",
		KeyCancel:             "Отмена",
		KeySettings:           "Настройки",
		KeyFile:               "Файл",
		KeyLanguage:           "Язык",
		KeyTheme:              "Сменить тему",
		KeySave:               "Сохранить",
		KeyReload:             "Обновить",
		KeySearch:             "Поиск программ",
		KeyCatalogPage:        "Страница каталога",
		KeyConfirmDuplicate:   "Спрашивать перед повторной загрузкой",
		KeyDuplicateTitle:     "Уже загружается",
		KeyDuplicateMessage:   "%s уже загружается. Начать ещё одну загрузку?",
		KeyCatalogUnavailable: "Каталог недоступен",
		KeyLoadingCatalog:     "Загрузка каталога...",
		KeyActiveDownloads:    "Активных загрузок: %d",
		KeyDownloadCompleted:  "Загрузка завершена",
		KeyDownloadFailed:     "Ошибка загрузки",
		KeySettingsSaved:      "Настройки успешно сохранены!",
		KeyErrorCancelling:    "Ошибка отмены загрузки",
		KeyErrorOpeningPage:   "Ошибка открытия страницы",
		KeyOpenPage:           "Открыть страницу программы",
		KeyNotDownloaded:      "Не загружено",
		KeyStatusRequested:    "Запрошено",
		KeyStatusInProgress:   "Загрузка",
		KeyStatusCompleted:    "Завершено",
		KeyStatusFailed:       "Ошибка",
		KeyStatusCancelled:    "Отменено",
		KeyStatusStreamLost:   "Связь потеряна",
		KeyStatusRejected:     "Отклонено",
		KeyStreamLost:         "Потеряна связь с сервисом загрузки",
	}

	l.texts["pt"] = map[string]string{
		KeyAppTitle:           "Soft Downloader",
		KeyDownload:           "Baixar",
		KeyCancel:             "Cancelar",
		KeySettings:           "Configurações",
		KeyFile:               "Arquivo",
		KeyLanguage:           "Idioma",
		KeyTheme:              "Alternar tema",
		KeySave:               "Salvar",
		KeyReload:             "Recarregar",
		KeySearch:             "Buscar programas",
		KeyCatalogPage:        "Página do catálogo",
		KeyConfirmDuplicate:   "Perguntar antes de baixar um programa duas vezes",
		KeyDuplicateTitle:     "Já está baixando",
		KeyDuplicateMessage:   "%s já está sendo baixado. Iniciar outro download?",
		KeyCatalogUnavailable: "Catálogo indisponível",
		KeyLoadingCatalog:     "Carregando catálogo...",
		KeyActiveDownloads:    "Downloads ativos: %d",
		KeyDownloadCompleted:  "Download concluído",
		KeyDownloadFailed:     "Falha no download",
		KeySettingsSaved:      "Configurações salvas com sucesso!",
		KeyErrorCancelling:    "Erro ao cancelar download",
		KeyErrorOpeningPage:   "Erro ao abrir a página",
		KeyOpenPage:           "Abrir página do programa",
		KeyNotDownloaded:      "Não baixado",
		KeyStatusRequested:    "Solicitado",
		KeyStatusInProgress:   "Baixando",
		KeyStatusCompleted:    "Concluído",
		KeyStatusFailed:       "Falhou",
		KeyStatusCancelled:    "Cancelado",
		KeyStatusStreamLost:   "Conexão perdida",
		KeyStatusRejected:     "Rejeitado",
		KeyStreamLost:         "A conexão com o serviço de download foi perdida",
	}
}
