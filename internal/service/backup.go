package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/pkg/e"
	"github.com/sirupsen/logrus"
)

// BackupService определяет контракт экспорта и импорта проблем в JSON
type BackupService interface {
	// Export записывает все проблемы во временный файл и возвращает путь к нему
	Export(ctx context.Context) (string, error)
	Import(ctx context.Context, r io.Reader) (*models.ImportResult, error)
}

type backupService struct {
	repo   IssueRepository
	logger *logrus.Logger
	dir    string
}

// NewBackupService создает сервис резервного копирования. Пустой dir означает os.TempDir().
func NewBackupService(repo IssueRepository, logger *logrus.Logger, dir string) BackupService {
	return &backupService{
		repo:   repo,
		logger: logger,
		dir:    dir,
	}
}

func (s *backupService) Export(ctx context.Context) (string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "backup",
		"method":  "Export",
	})

	issues, err := s.repo.List(ctx, models.IssueFilter{})
	if err != nil {
		log.WithError(err).Error("Failed to load issues for export")
		return "", fmt.Errorf("service: could not load issues for export: %w", err)
	}

	records := make([]models.BackupRecord, 0, len(issues))
	for _, issue := range issues {
		records = append(records, toBackupRecord(issue))
	}

	f, err := os.CreateTemp(s.dir, "issues-*.json")
	if err != nil {
		log.WithError(err).Error("Failed to create export file")
		return "", fmt.Errorf("service: could not create export file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		f.Close()
		os.Remove(f.Name())
		log.WithError(err).Error("Failed to encode issues")
		return "", fmt.Errorf("service: could not encode issues: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("service: could not write export file: %w", err)
	}

	log.WithField("count", len(records)).WithField("path", f.Name()).Info("Issues exported")
	return f.Name(), nil
}

// Import разбирает массив записей. Записи с неизвестной важностью или
// некорректными полями пропускаются, остальные сохраняются одной пачкой.
func (s *backupService) Import(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "backup",
		"method":  "Import",
	})

	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		log.WithError(err).Warn("Failed to decode import file")
		return nil, fmt.Errorf("service: could not decode import file: %v: %w", err, e.ErrInvalidInput)
	}

	result := &models.ImportResult{}
	issues := make([]*models.Issue, 0, len(raw))
	for i, item := range raw {
		issue, err := fromBackupRecord(item)
		if err != nil {
			log.WithError(err).WithField("index", i).Warn("Skipping malformed backup record")
			result.Skipped++
			continue
		}
		issues = append(issues, issue)
	}

	if len(issues) > 0 {
		if err := s.repo.CreateBatch(ctx, issues); err != nil {
			log.WithError(err).Error("Failed to store imported issues")
			return nil, fmt.Errorf("service: could not store imported issues: %w", err)
		}
	}
	result.Imported = len(issues)

	log.WithFields(logrus.Fields{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}).Info("Issues imported")
	return result, nil
}

func toBackupRecord(issue *models.Issue) models.BackupRecord {
	record := models.BackupRecord{
		Title:            issue.Title,
		IssueDescription: issue.Description,
		Severity:         string(issue.Severity),
		Latitude:         issue.Latitude,
		Longitude:        issue.Longitude,
		CreatedAt:        issue.CreatedAt.UTC(),
	}
	if issue.ResolvedAt != nil {
		resolvedAt := issue.ResolvedAt.UTC()
		record.ResolvedAt = &resolvedAt
	}
	return record
}

func fromBackupRecord(raw json.RawMessage) (*models.Issue, error) {
	var record models.BackupRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	severity, ok := models.ParseSeverity(record.Severity)
	if !ok {
		return nil, fmt.Errorf("unknown severity %q", record.Severity)
	}
	title := strings.TrimSpace(record.Title)
	if title == "" {
		return nil, fmt.Errorf("empty title")
	}
	if !models.ValidCoordinates(record.Latitude, record.Longitude) {
		return nil, fmt.Errorf("coordinates (%f, %f) out of range", record.Latitude, record.Longitude)
	}
	if record.CreatedAt.IsZero() {
		return nil, fmt.Errorf("missing createdAt")
	}

	issue := &models.Issue{
		ID:          uuid.New(),
		Title:       title,
		Description: record.IssueDescription,
		Severity:    severity,
		Latitude:    record.Latitude,
		Longitude:   record.Longitude,
		CreatedAt:   record.CreatedAt.UTC(),
	}
	if record.ResolvedAt != nil {
		issue.SetResolved(true, record.ResolvedAt.UTC())
	}
	return issue, nil
}

