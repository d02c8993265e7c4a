package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/drive_issue_log/internal/models"
)

const (
	issueEventQueueKey = "issue_events"
)

// EventType - тип изменения проблемы
type EventType string

const (
	EventIssueCreated  EventType = "issue.created"
	EventIssueUpdated  EventType = "issue.updated"
	EventIssueResolved EventType = "issue.resolved"
	EventIssueReopened EventType = "issue.reopened"
	EventIssueDeleted  EventType = "issue.deleted"
)

// IssueEvent - структура для данных вебхука
type IssueEvent struct {
	Type      EventType     `json:"type"`
	IssueID   uuid.UUID     `json:"issue_id"`
	Issue     *models.Issue `json:"issue,omitempty"` // Снимок проблемы, отсутствует для удаления
	Timestamp time.Time     `json:"timestamp"`
}

// NewIssueEvent создает событие по проблеме
func NewIssueEvent(eventType EventType, issue *models.Issue, now time.Time) IssueEvent {
	event := IssueEvent{
		Type:      eventType,
		IssueID:   issue.ID,
		Timestamp: now,
	}
	if eventType != EventIssueDeleted {
		snapshot := *issue
		event.Issue = &snapshot
	}
	return event
}

// Publisher - интерфейс для публикации событий по проблемам
type Publisher interface {
	Publish(ctx context.Context, event IssueEvent) error
}

// RedisPublisher - реализация Publisher, использующая Redis
type RedisPublisher struct {
	redisClient *redis.Client
}

// NewRedisPublisher создает новый RedisPublisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		redisClient: client,
	}
}

// Publish публикует событие в очередь Redis
func (p *RedisPublisher) Publish(ctx context.Context, event IssueEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal issue event: %w", err)
	}

	// Используем LPUSH для добавления события в левую часть списка (очереди)
	if err := p.redisClient.LPush(ctx, issueEventQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish issue event to Redis: %w", err)
	}
	return nil
}
