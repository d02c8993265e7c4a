package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/internal/service/mocks"
	"github.com/shenikar/drive_issue_log/pkg/e"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestSettingsService(t *testing.T, devMode bool) (SettingsService, *mocks.MockPreferencesRepository, *mocks.MockIssueRepository) {
	ctrl := gomock.NewController(t)
	prefsMock := mocks.NewMockPreferencesRepository(ctrl)
	issuesMock := mocks.NewMockIssueRepository(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	return NewSettingsService(prefsMock, issuesMock, logger, devMode), prefsMock, issuesMock
}

func TestGetSettings(t *testing.T) {
	svc, prefsMock, _ := newTestSettingsService(t, false)
	ctx := context.Background()
	defaults := models.DefaultSettings()

	prefsMock.EXPECT().GetSettings(ctx).Return(&defaults, nil).Times(1)

	settings, err := svc.GetSettings(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.SeverityMedium, settings.DefaultSeverity)
	assert.Equal(t, models.DefaultAccentColorHex, settings.AccentColorHex)
	assert.False(t, settings.DarkModeEnabled)
}

func TestUpdateSettings_Success(t *testing.T) {
	svc, prefsMock, _ := newTestSettingsService(t, false)
	ctx := context.Background()
	settings := &models.Settings{DefaultSeverity: models.SeverityHigh, AccentColorHex: "#ff9500", DarkModeEnabled: true}

	prefsMock.EXPECT().
		SaveSettings(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, s *models.Settings) error {
			assert.Equal(t, "#FF9500", s.AccentColorHex)
			return nil
		}).Times(1)

	assert.NoError(t, svc.UpdateSettings(ctx, settings))
}

func TestUpdateSettings_InvalidSeverity(t *testing.T) {
	svc, prefsMock, _ := newTestSettingsService(t, false)
	prefsMock.EXPECT().SaveSettings(gomock.Any(), gomock.Any()).Times(0)

	err := svc.UpdateSettings(context.Background(), &models.Settings{DefaultSeverity: "urgent", AccentColorHex: "#007AFF"})

	assert.ErrorIs(t, err, e.ErrInvalidInput)
}

func TestResetData_ForbiddenOutsideDevMode(t *testing.T) {
	svc, _, issuesMock := newTestSettingsService(t, false)
	issuesMock.EXPECT().DeleteAll(gomock.Any()).Times(0)

	_, err := svc.ResetData(context.Background())

	assert.ErrorIs(t, err, e.ErrForbidden)
}

func TestResetData_DevMode(t *testing.T) {
	svc, _, issuesMock := newTestSettingsService(t, true)
	ctx := context.Background()

	issuesMock.EXPECT().DeleteAll(ctx).Return(int64(3), nil).Times(1)
	issuesMock.EXPECT().ClearIssueCache(ctx).Return(errors.New("redis down")).Times(1) // Не критично

	deleted, err := svc.ResetData(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
