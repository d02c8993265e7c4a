package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/pkg/e"
	"github.com/sirupsen/logrus"
)

// SettingsService определяет контракт для настроек приложения и темы
type SettingsService interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, settings *models.Settings) error
	// ResetData удаляет все проблемы. Доступно только в режиме разработки.
	ResetData(ctx context.Context) (int64, error)
}

type settingsService struct {
	prefs   PreferencesRepository
	issues  IssueRepository
	logger  *logrus.Logger
	devMode bool
}

func NewSettingsService(prefs PreferencesRepository, issues IssueRepository, logger *logrus.Logger, devMode bool) SettingsService {
	return &settingsService{
		prefs:   prefs,
		issues:  issues,
		logger:  logger,
		devMode: devMode,
	}
}

func (s *settingsService) GetSettings(ctx context.Context) (*models.Settings, error) {
	settings, err := s.prefs.GetSettings(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("method", "GetSettings").Error("Failed to load settings")
		return nil, fmt.Errorf("service: could not load settings: %w", err)
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, settings *models.Settings) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "settings",
		"method":  "UpdateSettings",
	})

	if !settings.DefaultSeverity.IsValid() {
		return fmt.Errorf("service: unknown default severity %q: %w", settings.DefaultSeverity, e.ErrInvalidInput)
	}
	settings.AccentColorHex = strings.ToUpper(settings.AccentColorHex)

	if err := s.prefs.SaveSettings(ctx, settings); err != nil {
		log.WithError(err).Error("Failed to save settings")
		return fmt.Errorf("service: could not save settings: %w", err)
	}

	log.WithFields(logrus.Fields{
		"default_severity": settings.DefaultSeverity,
		"accent_color":     settings.AccentColorHex,
		"dark_mode":        settings.DarkModeEnabled,
	}).Info("Settings updated")
	return nil
}

func (s *settingsService) ResetData(ctx context.Context) (int64, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "settings",
		"method":  "ResetData",
	})

	if !s.devMode {
		log.Warn("Database reset requested outside of dev mode")
		return 0, fmt.Errorf("service: database reset is only available in dev mode: %w", e.ErrForbidden)
	}

	deleted, err := s.issues.DeleteAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to delete issues")
		return 0, fmt.Errorf("service: could not reset issues: %w", err)
	}
	if err := s.issues.ClearIssueCache(ctx); err != nil {
		log.WithError(err).Warn("Failed to clear issue cache")
	}

	log.WithField("deleted", deleted).Warn("All issues deleted")
	return deleted, nil
}
