package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/internal/webhook"
	"github.com/shenikar/drive_issue_log/pkg/e"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxMapIssues    = 1000
)

// IssueRepository определяет контракт для работы с бд проблем
type IssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	CreateBatch(ctx context.Context, issues []*models.Issue) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	Update(ctx context.Context, issue *models.Issue) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error)
	DeleteAll(ctx context.Context) (int64, error)

	GetIssueFromCache(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	SetIssueCache(ctx context.Context, issue *models.Issue) error
	InvalidateIssueCache(ctx context.Context, id uuid.UUID) error
	ClearIssueCache(ctx context.Context) error
}

// PreferencesRepository определяет контракт для хранилища пользовательских настроек
type PreferencesRepository interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error
}

// IssueService определяет контракт для бизнес-логики управления проблемами
type IssueService interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	SetResolved(ctx context.Context, id uuid.UUID, resolved bool) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id uuid.UUID) error
	ListIssues(ctx context.Context, filter models.IssueFilter, page, pageSize int) ([]*models.Issue, error)
	MapIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error)
}

type issueService struct {
	repo      IssueRepository
	prefs     PreferencesRepository
	publisher webhook.Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewIssueService(repo IssueRepository, prefs PreferencesRepository, publisher webhook.Publisher, logger *logrus.Logger) IssueService {
	return &issueService{
		repo:      repo,
		prefs:     prefs,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateIssue создает проблему. Пустая важность заменяется значением из настроек.
func (s *issueService) CreateIssue(ctx context.Context, issue *models.Issue) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "issue",
		"method":  "CreateIssue",
		"title":   issue.Title,
	})
	log.Info("Attempting to create a new issue")

	issue.Title = strings.TrimSpace(issue.Title)
	if issue.Title == "" {
		return fmt.Errorf("service: title must not be empty: %w", e.ErrInvalidInput)
	}
	if !models.ValidCoordinates(issue.Latitude, issue.Longitude) {
		return fmt.Errorf("service: coordinates (%f, %f) out of range: %w", issue.Latitude, issue.Longitude, e.ErrInvalidInput)
	}

	if issue.Severity == "" {
		issue.Severity = s.defaultSeverity(ctx, log)
	}
	if !issue.Severity.IsValid() {
		return fmt.Errorf("service: unknown severity %q: %w", issue.Severity, e.ErrInvalidInput)
	}

	issue.ID = uuid.New()
	issue.CreatedAt = s.now().UTC()
	issue.ResolvedAt = nil

	if err := s.repo.Create(ctx, issue); err != nil {
		log.WithError(err).Error("Failed to create issue in repository")
		return fmt.Errorf("service: could not create issue: %w", err)
	}

	log.WithField("issue_id", issue.ID).Info("Issue created successfully")
	s.publish(ctx, log, webhook.EventIssueCreated, issue)
	return nil
}

// GetIssue получает проблему по ID, сначала из кеша
func (s *issueService) GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "GetIssue",
		"issue_id": id,
	})
	log.Debug("Fetching issue by ID")

	cached, err := s.repo.GetIssueFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read issue from cache")
	}
	if cached != nil {
		return cached, nil
	}

	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get issue from repository")
		return nil, fmt.Errorf("service: could not get issue: %w", err)
	}

	if err := s.repo.SetIssueCache(ctx, issue); err != nil {
		log.WithError(err).Warn("Failed to cache issue")
	}
	return issue, nil
}

// UpdateIssue изменяет заголовок, описание и важность. Координаты и даты не меняются.
func (s *issueService) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "UpdateIssue",
		"issue_id": issue.ID,
	})
	log.Info("Attempting to update issue")

	title := strings.TrimSpace(issue.Title)
	if title == "" {
		return fmt.Errorf("service: title must not be empty: %w", e.ErrInvalidInput)
	}
	if !issue.Severity.IsValid() {
		return fmt.Errorf("service: unknown severity %q: %w", issue.Severity, e.ErrInvalidInput)
	}

	existing, err := s.repo.GetByID(ctx, issue.ID)
	if err != nil {
		log.WithError(err).Warn("Attempted to update a non-existent issue")
		return fmt.Errorf("service: issue %s not found for update: %w", issue.ID, err)
	}

	existing.Title = title
	existing.Description = issue.Description
	existing.Severity = issue.Severity

	if err := s.repo.Update(ctx, existing); err != nil {
		log.WithError(err).Error("Failed to update issue in repository")
		return fmt.Errorf("service: could not update issue: %w", err)
	}
	s.invalidate(ctx, log, existing.ID)

	*issue = *existing
	log.Info("Issue updated successfully")
	s.publish(ctx, log, webhook.EventIssueUpdated, existing)
	return nil
}

// SetResolved переключает отметку о решении проблемы
func (s *issueService) SetResolved(ctx context.Context, id uuid.UUID, resolved bool) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "SetResolved",
		"issue_id": id,
		"resolved": resolved,
	})

	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to resolve a non-existent issue")
		return nil, fmt.Errorf("service: issue %s not found for resolve: %w", id, err)
	}

	if issue.IsResolved() == resolved {
		return issue, nil
	}

	issue.SetResolved(resolved, s.now().UTC())
	if err := s.repo.Update(ctx, issue); err != nil {
		log.WithError(err).Error("Failed to update resolve state in repository")
		return nil, fmt.Errorf("service: could not resolve issue: %w", err)
	}
	s.invalidate(ctx, log, id)

	eventType := webhook.EventIssueReopened
	if resolved {
		eventType = webhook.EventIssueResolved
	}
	log.Info("Issue resolve state changed")
	s.publish(ctx, log, eventType, issue)
	return issue, nil
}

// DeleteIssue удаляет проблему
func (s *issueService) DeleteIssue(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "DeleteIssue",
		"issue_id": id,
	})
	log.Info("Attempting to delete issue")

	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to delete a non-existent issue")
		return fmt.Errorf("service: issue %s not found for delete: %w", id, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		log.WithError(err).Error("Failed to delete issue in repository")
		return fmt.Errorf("service: could not delete issue: %w", err)
	}
	s.invalidate(ctx, log, id)

	log.Info("Issue deleted successfully")
	s.publish(ctx, log, webhook.EventIssueDeleted, issue)
	return nil
}

// ListIssues возвращает список проблем, самые новые первыми
func (s *issueService) ListIssues(ctx context.Context, filter models.IssueFilter, page, pageSize int) ([]*models.Issue, error) {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "issue",
		"method":    "ListIssues",
		"page":      page,
		"page_size": pageSize,
	})

	if filter.Severity != "" && !filter.Severity.IsValid() {
		return nil, fmt.Errorf("service: unknown severity %q: %w", filter.Severity, e.ErrInvalidInput)
	}

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	issues, err := s.repo.List(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list issues from repository")
		return nil, fmt.Errorf("service: could not list issues: %w", err)
	}

	log.WithField("count", len(issues)).Debug("Issues listed successfully")
	return issues, nil
}

// MapIssues возвращает маркеры для карты в пределах области
func (s *issueService) MapIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "issue",
		"method":  "MapIssues",
	})

	if b := filter.Bounds; b != nil {
		if !models.ValidCoordinates(b.MinLat, b.MinLon) || !models.ValidCoordinates(b.MaxLat, b.MaxLon) || b.MinLat > b.MaxLat {
			return nil, fmt.Errorf("service: invalid bounding box: %w", e.ErrInvalidInput)
		}
	}

	filter.Limit = maxMapIssues
	filter.Offset = 0

	issues, err := s.repo.List(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list map issues from repository")
		return nil, fmt.Errorf("service: could not list map issues: %w", err)
	}
	return issues, nil
}

func (s *issueService) defaultSeverity(ctx context.Context, log *logrus.Entry) models.Severity {
	settings, err := s.prefs.GetSettings(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to load settings, falling back to medium severity")
		return models.SeverityMedium
	}
	if !settings.DefaultSeverity.IsValid() {
		return models.SeverityMedium
	}
	return settings.DefaultSeverity
}

func (s *issueService) invalidate(ctx context.Context, log *logrus.Entry, id uuid.UUID) {
	if err := s.repo.InvalidateIssueCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate issue cache")
	}
}

// publish отправляет событие; ошибка очереди не отменяет операцию
func (s *issueService) publish(ctx context.Context, log *logrus.Entry, eventType webhook.EventType, issue *models.Issue) {
	if err := s.publisher.Publish(ctx, webhook.NewIssueEvent(eventType, issue, s.now().UTC())); err != nil {
		log.WithError(err).Warn("Failed to publish issue event")
	}
}
