package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/drive_issue_log/internal/tracker"
)

const backgroundSessionKey = "tracking:background_session"

// releaseSession удаляет ключ, только если он все еще принадлежит этой сессии
var releaseSession = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionRepository выдает дескрипторы фоновой активности.
// Активная сессия одна: новая вытесняет предыдущую.
type SessionRepository struct {
	redisClient *redis.Client
}

func NewSessionRepository(redisClient *redis.Client) *SessionRepository {
	return &SessionRepository{redisClient: redisClient}
}

func (r *SessionRepository) Begin(ctx context.Context) (tracker.Session, error) {
	id := uuid.NewString()
	if err := r.redisClient.Set(ctx, backgroundSessionKey, id, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to begin background session: %w", err)
	}
	return &backgroundSession{id: id, redisClient: r.redisClient}, nil
}

// current возвращает ID активной сессии или пустую строку
func (r *SessionRepository) current(ctx context.Context) (string, error) {
	id, err := r.redisClient.Get(ctx, backgroundSessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get background session: %w", err)
	}
	return id, nil
}

type backgroundSession struct {
	id          string
	redisClient *redis.Client
}

func (s *backgroundSession) ID() string {
	return s.id
}

// Invalidate освобождает сессию; вытесненная сессия ничего не удаляет
func (s *backgroundSession) Invalidate(ctx context.Context) error {
	if err := releaseSession.Run(ctx, s.redisClient, []string{backgroundSessionKey}, s.id).Err(); err != nil {
		return fmt.Errorf("failed to invalidate background session: %w", err)
	}
	return nil
}
