package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateIssueRequest DTO для создания проблемы
// @Description DTO для создания проблемы. Координаты или use_current_location.
type CreateIssueRequest struct {
	Title              string   `json:"title" validate:"required,max=255"`
	Description        string   `json:"description,omitempty" validate:"max=4000"`
	Severity           string   `json:"severity,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty" validate:"omitempty,lat"`
	Longitude          *float64 `json:"longitude,omitempty" validate:"omitempty,lng"`
	UseCurrentLocation bool     `json:"use_current_location,omitempty"`
}

// UpdateIssueRequest DTO для изменения проблемы
// @Description DTO для изменения проблемы
type UpdateIssueRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description,omitempty" validate:"max=4000"`
	Severity    string `json:"severity" validate:"required"`
}

// ResolveIssueRequest DTO для отметки о решении
// @Description DTO для отметки о решении
type ResolveIssueRequest struct {
	Resolved *bool `json:"resolved" validate:"required"`
}

// IssueResponse DTO для ответа с информацией о проблеме
// @Description DTO для ответа с информацией о проблеме
type IssueResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Resolved    bool       `json:"resolved"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// SettingsRequest DTO для сохранения настроек
// @Description DTO для сохранения настроек
type SettingsRequest struct {
	DefaultSeverity string `json:"defaultSeverity" validate:"required"`
	AccentColorHex  string `json:"accentColorHex" validate:"required,accent_color"`
	DarkModeEnabled bool   `json:"darkModeEnabled"`
}

// SettingsResponse DTO с текущими настройками
// @Description DTO с текущими настройками
type SettingsResponse struct {
	DefaultSeverity string `json:"defaultSeverity"`
	AccentColorHex  string `json:"accentColorHex"`
	DarkModeEnabled bool   `json:"darkModeEnabled"`
}

// ResetResponse DTO с результатом сброса данных
type ResetResponse struct {
	Deleted int64 `json:"deleted"`
}

// ImportResponse DTO с результатом импорта
// @Description DTO с результатом импорта
type ImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// BackgroundActivityRequest DTO для фоновой активности
type BackgroundActivityRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// PermissionRequest DTO с ответом пользователя на запрос геолокации
type PermissionRequest struct {
	Status string `json:"status" validate:"required,oneof=not_determined denied authorized"`
}

// LocationFixRequest DTO с отметкой местоположения от устройства
// @Description DTO с отметкой местоположения от устройства
type LocationFixRequest struct {
	Latitude           *float64   `json:"latitude" validate:"required,lat"`
	Longitude          *float64   `json:"longitude" validate:"required,lng"`
	Altitude           float64    `json:"altitude,omitempty"`
	HorizontalAccuracy float64    `json:"horizontal_accuracy,omitempty" validate:"gte=0"`
	Speed              float64    `json:"speed,omitempty"`
	Course             float64    `json:"course,omitempty"`
	Timestamp          *time.Time `json:"timestamp,omitempty"`
	Stationary         bool       `json:"stationary,omitempty"`
}

// FeedErrorRequest DTO с ошибкой потока координат на устройстве
type FeedErrorRequest struct {
	Message string `json:"message" validate:"required,max=500"`
}
