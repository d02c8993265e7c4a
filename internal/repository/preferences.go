package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/drive_issue_log/internal/models"
)

const preferencesKey = "preferences"

// Поля хеша настроек
const (
	fieldDefaultSeverity    = "defaultSeverity"
	fieldAccentColorHex     = "accentColorHex"
	fieldDarkModeEnabled    = "darkModeEnabled"
	fieldUpdatesStarted     = "updatesStarted"
	fieldBackgroundActivity = "backgroundActivity"
)

// PreferencesRepository хранит настройки и флаги трекера в одном хеше Redis.
// Отсутствующие поля заменяются значениями по умолчанию.
type PreferencesRepository struct {
	redisClient *redis.Client
}

func NewPreferencesRepository(redisClient *redis.Client) *PreferencesRepository {
	return &PreferencesRepository{redisClient: redisClient}
}

// GetSettings читает пользовательские настройки
func (r *PreferencesRepository) GetSettings(ctx context.Context) (*models.Settings, error) {
	values, err := r.redisClient.HMGet(ctx, preferencesKey,
		fieldDefaultSeverity,
		fieldAccentColorHex,
		fieldDarkModeEnabled,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := models.DefaultSettings()
	if label, ok := values[0].(string); ok {
		if severity, ok := models.ParseSeverity(label); ok {
			settings.DefaultSeverity = severity
		}
	}
	if color, ok := values[1].(string); ok && color != "" {
		settings.AccentColorHex = color
	}
	settings.DarkModeEnabled = parseBool(values[2], false)
	return &settings, nil
}

// SaveSettings сохраняет пользовательские настройки
func (r *PreferencesRepository) SaveSettings(ctx context.Context, settings *models.Settings) error {
	err := r.redisClient.HSet(ctx, preferencesKey,
		fieldDefaultSeverity, string(settings.DefaultSeverity),
		fieldAccentColorHex, settings.AccentColorHex,
		fieldDarkModeEnabled, strconv.FormatBool(settings.DarkModeEnabled),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetTrackingFlags читает флаги трекера
func (r *PreferencesRepository) GetTrackingFlags(ctx context.Context) (models.TrackingFlags, error) {
	values, err := r.redisClient.HMGet(ctx, preferencesKey,
		fieldUpdatesStarted,
		fieldBackgroundActivity,
	).Result()
	if err != nil {
		return models.TrackingFlags{}, fmt.Errorf("failed to get tracking flags: %w", err)
	}

	return models.TrackingFlags{
		UpdatesStarted:     parseBool(values[0], false),
		BackgroundActivity: parseBool(values[1], false),
	}, nil
}

// SaveTrackingFlags сохраняет флаги трекера
func (r *PreferencesRepository) SaveTrackingFlags(ctx context.Context, flags models.TrackingFlags) error {
	err := r.redisClient.HSet(ctx, preferencesKey,
		fieldUpdatesStarted, strconv.FormatBool(flags.UpdatesStarted),
		fieldBackgroundActivity, strconv.FormatBool(flags.BackgroundActivity),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save tracking flags: %w", err)
	}
	return nil
}

func parseBool(value any, fallback bool) bool {
	s, ok := value.(string)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
