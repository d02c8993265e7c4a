package models

const DefaultAccentColorHex = "#0000FF"

// Settings - пользовательские настройки приложения
type Settings struct {
	DefaultSeverity Severity `json:"defaultSeverity"`
	AccentColorHex  string   `json:"accentColorHex"`
	DarkModeEnabled bool     `json:"darkModeEnabled"`
}

// DefaultSettings возвращает настройки для нового пользователя
func DefaultSettings() Settings {
	return Settings{
		DefaultSeverity: SeverityMedium,
		AccentColorHex:  DefaultAccentColorHex,
		DarkModeEnabled: false,
	}
}
