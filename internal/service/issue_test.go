package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/internal/service/mocks"
	"github.com/shenikar/drive_issue_log/internal/webhook"
	webhook_mocks "github.com/shenikar/drive_issue_log/internal/webhook/mocks"
	"github.com/shenikar/drive_issue_log/pkg/e"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// newTestIssueService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIssueService(t *testing.T) (*issueService, *mocks.MockIssueRepository, *mocks.MockPreferencesRepository, *webhook_mocks.MockPublisher) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockIssueRepository(ctrl)
	prefsMock := mocks.NewMockPreferencesRepository(ctrl)
	publisherMock := webhook_mocks.NewMockPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	svc := NewIssueService(repoMock, prefsMock, publisherMock, logger).(*issueService)
	svc.now = func() time.Time { return testNow }
	return svc, repoMock, prefsMock, publisherMock
}

func TestCreateIssue_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _, publisherMock := newTestIssueService(t)
	ctx := context.Background()
	issue := &models.Issue{
		Title:     " Brake delay ",
		Severity:  models.SeverityHigh,
		Latitude:  37.5665,
		Longitude: 126.9780,
	}

	// Ожидания
	repoMock.EXPECT().Create(ctx, issue).Return(nil).Times(1)
	publisherMock.EXPECT().
		Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, event webhook.IssueEvent) error {
			assert.Equal(t, webhook.EventIssueCreated, event.Type)
			assert.Equal(t, issue.ID, event.IssueID)
			return nil
		}).
		Times(1)

	// Действие
	err := svc.CreateIssue(ctx, issue)

	// Проверки
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, issue.ID)
	assert.Equal(t, "Brake delay", issue.Title)
	assert.Equal(t, testNow, issue.CreatedAt)
	assert.Nil(t, issue.ResolvedAt)
}

func TestCreateIssue_UsesDefaultSeverity(t *testing.T) {
	svc, repoMock, prefsMock, publisherMock := newTestIssueService(t)
	ctx := context.Background()
	issue := &models.Issue{Title: "Phantom braking", Latitude: 1, Longitude: 2}

	prefsMock.EXPECT().GetSettings(ctx).Return(&models.Settings{DefaultSeverity: models.SeverityCritical}, nil).Times(1)
	repoMock.EXPECT().Create(ctx, issue).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	require.NoError(t, svc.CreateIssue(ctx, issue))
	assert.Equal(t, models.SeverityCritical, issue.Severity)
}

func TestCreateIssue_DefaultSeverityFallback(t *testing.T) {
	svc, repoMock, prefsMock, publisherMock := newTestIssueService(t)
	ctx := context.Background()
	issue := &models.Issue{Title: "Lane drift", Latitude: 1, Longitude: 2}

	prefsMock.EXPECT().GetSettings(ctx).Return(nil, errors.New("redis down")).Times(1)
	repoMock.EXPECT().Create(ctx, issue).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	require.NoError(t, svc.CreateIssue(ctx, issue))
	assert.Equal(t, models.SeverityMedium, issue.Severity)
}

func TestCreateIssue_Validation(t *testing.T) {
	tests := []struct {
		name  string
		issue *models.Issue
	}{
		{"empty title", &models.Issue{Title: "   ", Severity: models.SeverityLow}},
		{"bad latitude", &models.Issue{Title: "x", Severity: models.SeverityLow, Latitude: 95}},
		{"bad longitude", &models.Issue{Title: "x", Severity: models.SeverityLow, Longitude: -200}},
		{"unknown severity", &models.Issue{Title: "x", Severity: "urgent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repoMock, _, _ := newTestIssueService(t)
			repoMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0) // Репозиторий не должен вызываться

			err := svc.CreateIssue(context.Background(), tt.issue)

			require.Error(t, err)
			assert.ErrorIs(t, err, e.ErrInvalidInput)
		})
	}
}

func TestCreateIssue_PublishErrorIsNotFatal(t *testing.T) {
	svc, repoMock, _, publisherMock := newTestIssueService(t)
	ctx := context.Background()
	issue := &models.Issue{Title: "Sensor glare", Severity: models.SeverityLow}

	repoMock.EXPECT().Create(ctx, issue).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("queue down")).Times(1)

	assert.NoError(t, svc.CreateIssue(ctx, issue))
}

func TestGetIssue_Success_FromCache(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	expected := &models.Issue{ID: issueID, Title: "Проблема из кеша"}

	repoMock.EXPECT().GetIssueFromCache(ctx, issueID).Return(expected, nil).Times(1)
	repoMock.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	issue, err := svc.GetIssue(ctx, issueID)

	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_Success_FromDB(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	expected := &models.Issue{ID: issueID, Title: "Проблема из БД"}

	// 1. Промах кеша
	repoMock.EXPECT().GetIssueFromCache(ctx, issueID).Return(nil, nil).Times(1)
	// 2. Попадание в БД
	repoMock.EXPECT().GetByID(ctx, issueID).Return(expected, nil).Times(1)
	// 3. Запись в кеш
	repoMock.EXPECT().SetIssueCache(ctx, expected).Return(nil).Times(1)

	issue, err := svc.GetIssue(ctx, issueID)

	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_NotFound(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	repoMock.EXPECT().GetIssueFromCache(ctx, issueID).Return(nil, nil).Times(1)
	repoMock.EXPECT().GetByID(ctx, issueID).Return(nil, fmt.Errorf("repo: %w", e.ErrNotFound)).Times(1)

	issue, err := svc.GetIssue(ctx, issueID)

	require.Error(t, err)
	assert.Nil(t, issue)
	assert.ErrorIs(t, err, e.ErrNotFound)
	assert.ErrorContains(t, err, "could not get issue")
}

func TestUpdateIssue_Success(t *testing.T) {
	svc, repoMock, _, publisherMock := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	existing := &models.Issue{
		ID:        issueID,
		Title:     "Old title",
		Severity:  models.SeverityLow,
		Latitude:  10,
		Longitude: 20,
		CreatedAt: testNow.Add(-time.Hour),
	}
	update := &models.Issue{ID: issueID, Title: "New title", Description: "details", Severity: models.SeverityHigh}

	repoMock.EXPECT().GetByID(ctx, issueID).Return(existing, nil).Times(1)
	repoMock.EXPECT().
		Update(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Issue) error {
			assert.Equal(t, "New title", inc.Title)
			assert.Equal(t, "details", inc.Description)
			assert.Equal(t, models.SeverityHigh, inc.Severity)
			// Координаты и дата создания не меняются
			assert.Equal(t, 10.0, inc.Latitude)
			assert.Equal(t, testNow.Add(-time.Hour), inc.CreatedAt)
			return nil
		}).Times(1)
	repoMock.EXPECT().InvalidateIssueCache(ctx, issueID).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	require.NoError(t, svc.UpdateIssue(ctx, update))
	assert.Equal(t, 20.0, update.Longitude)
}

func TestUpdateIssue_NotFound(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	repoMock.EXPECT().GetByID(ctx, issueID).Return(nil, fmt.Errorf("repo: %w", e.ErrNotFound)).Times(1)
	repoMock.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)

	err := svc.UpdateIssue(ctx, &models.Issue{ID: issueID, Title: "x", Severity: models.SeverityLow})

	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestSetResolved_Toggle(t *testing.T) {
	svc, repoMock, _, publisherMock := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	stored := &models.Issue{ID: issueID, Title: "Brake delay", Severity: models.SeverityHigh, CreatedAt: testNow.Add(-time.Minute)}

	repoMock.EXPECT().GetByID(ctx, issueID).Return(stored, nil).Times(2)
	repoMock.EXPECT().Update(ctx, stored).Return(nil).Times(2)
	repoMock.EXPECT().InvalidateIssueCache(ctx, issueID).Return(nil).Times(2)

	gomock.InOrder(
		publisherMock.EXPECT().
			Publish(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, event webhook.IssueEvent) error {
				assert.Equal(t, webhook.EventIssueResolved, event.Type)
				return nil
			}),
		publisherMock.EXPECT().
			Publish(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, event webhook.IssueEvent) error {
				assert.Equal(t, webhook.EventIssueReopened, event.Type)
				return nil
			}),
	)

	resolved, err := svc.SetResolved(ctx, issueID, true)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, testNow, *resolved.ResolvedAt)

	reopened, err := svc.SetResolved(ctx, issueID, false)
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestSetResolved_NoChange(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	stored := &models.Issue{ID: issueID, Title: "Open", CreatedAt: testNow}

	repoMock.EXPECT().GetByID(ctx, issueID).Return(stored, nil).Times(1)
	repoMock.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)

	issue, err := svc.SetResolved(ctx, issueID, false)

	require.NoError(t, err)
	assert.Nil(t, issue.ResolvedAt)
}

func TestDeleteIssue_Success(t *testing.T) {
	svc, repoMock, _, publisherMock := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	repoMock.EXPECT().GetByID(ctx, issueID).Return(&models.Issue{ID: issueID}, nil).Times(1)
	repoMock.EXPECT().Delete(ctx, issueID).Return(nil).Times(1)
	repoMock.EXPECT().InvalidateIssueCache(ctx, issueID).Return(nil).Times(1)
	publisherMock.EXPECT().
		Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, event webhook.IssueEvent) error {
			assert.Equal(t, webhook.EventIssueDeleted, event.Type)
			assert.Nil(t, event.Issue)
			return nil
		}).Times(1)

	assert.NoError(t, svc.DeleteIssue(ctx, issueID))
}

func TestDeleteIssue_NotFound(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	repoMock.EXPECT().GetByID(ctx, issueID).Return(nil, fmt.Errorf("repo: %w", e.ErrNotFound)).Times(1)
	repoMock.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)

	assert.ErrorIs(t, svc.DeleteIssue(ctx, issueID), e.ErrNotFound)
}

func TestListIssues_Pagination(t *testing.T) {
	tests := []struct {
		name           string
		page, pageSize int
		wantLimit      int
		wantOffset     int
	}{
		{"defaults", 0, 0, defaultPageSize, 0},
		{"third page", 3, 10, 10, 20},
		{"page size too large", 1, 500, defaultPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repoMock, _, _ := newTestIssueService(t)
			ctx := context.Background()

			repoMock.EXPECT().
				List(ctx, models.IssueFilter{Status: models.IssueStatusOpen, Limit: tt.wantLimit, Offset: tt.wantOffset}).
				Return([]*models.Issue{}, nil).
				Times(1)

			issues, err := svc.ListIssues(ctx, models.IssueFilter{Status: models.IssueStatusOpen}, tt.page, tt.pageSize)

			require.NoError(t, err)
			assert.Empty(t, issues)
		})
	}
}

func TestListIssues_UnknownSeverity(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	repoMock.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.ListIssues(context.Background(), models.IssueFilter{Severity: "urgent"}, 1, 10)

	assert.ErrorIs(t, err, e.ErrInvalidInput)
}

func TestMapIssues_InvalidBounds(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	repoMock.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.MapIssues(context.Background(), models.IssueFilter{
		Bounds: &models.BoundingBox{MinLat: 40, MinLon: 0, MaxLat: 30, MaxLon: 10},
	})

	assert.ErrorIs(t, err, e.ErrInvalidInput)
}

func TestMapIssues_Limit(t *testing.T) {
	svc, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	bounds := &models.BoundingBox{MinLat: 37, MinLon: 126, MaxLat: 38, MaxLon: 127}

	repoMock.EXPECT().
		List(ctx, models.IssueFilter{Bounds: bounds, Limit: maxMapIssues}).
		Return([]*models.Issue{{Title: "marker"}}, nil).
		Times(1)

	issues, err := svc.MapIssues(ctx, models.IssueFilter{Bounds: bounds, Offset: 7})

	require.NoError(t, err)
	assert.Len(t, issues, 1)
}
