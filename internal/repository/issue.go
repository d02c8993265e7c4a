package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/internal/service"
	"github.com/shenikar/drive_issue_log/pkg/e"
)

const (
	issueCachePrefix  = "issue:"
	defaultIssueTTL   = 5 * time.Minute
	cacheScanPageSize = 100
)

const issueColumns = `id, title, description, severity, latitude, longitude, created_at, resolved_at`

type IssueRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewIssueRepository(db *pgxpool.Pool, redisClient *redis.Client, cacheTTL time.Duration) service.IssueRepository {
	if cacheTTL <= 0 {
		cacheTTL = defaultIssueTTL
	}
	return &IssueRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

// Create создает новую запись о проблеме в бд
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	query := `
		INSERT INTO issues (id, title, description, severity, latitude, longitude, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.db.Exec(ctx, query,
		issue.ID,
		issue.Title,
		issue.Description,
		issue.Severity,
		issue.Latitude,
		issue.Longitude,
		issue.CreatedAt,
		issue.ResolvedAt,
	)
	if err != nil {
		return e.WrapError("repository: create issue", err)
	}
	return nil
}

// CreateBatch вставляет проблемы одной транзакцией: либо все, либо ни одной
func (r *IssueRepository) CreateBatch(ctx context.Context, issues []*models.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return e.WrapError("repository: begin import", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // после Commit откат ничего не делает

	query := `
		INSERT INTO issues (id, title, description, severity, latitude, longitude, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	batch := &pgx.Batch{}
	for _, issue := range issues {
		batch.Queue(query,
			issue.ID,
			issue.Title,
			issue.Description,
			issue.Severity,
			issue.Latitude,
			issue.Longitude,
			issue.CreatedAt,
			issue.ResolvedAt,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return e.WrapError("repository: import issues", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return e.WrapError("repository: commit import", err)
	}
	return nil
}

// GetByID возвращает проблему по ее UUID
func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1;`

	issue, err := scanIssue(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, e.WrapError(fmt.Sprintf("repository: get issue %s", id), err)
	}
	return issue, nil
}

// Update сохраняет изменяемые поля: заголовок, описание, важность и отметку о решении
func (r *IssueRepository) Update(ctx context.Context, issue *models.Issue) error {
	query := `
		UPDATE issues SET
			title = $1,
			description = $2,
			severity = $3,
			resolved_at = $4
		WHERE id = $5;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		issue.Title,
		issue.Description,
		issue.Severity,
		issue.ResolvedAt,
		issue.ID,
	)
	if err != nil {
		return e.WrapError("repository: update issue", err)
	}

	// Если RowsAffected() == 0, значит проблемы с таким id не существует
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("repository: issue %s not found for update: %w", issue.ID, e.ErrNotFound)
	}
	return nil
}

// Delete удаляет проблему
func (r *IssueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM issues WHERE id = $1;`, id)
	if err != nil {
		return e.WrapError("repository: delete issue", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("repository: issue %s not found for delete: %w", id, e.ErrNotFound)
	}
	return nil
}

// DeleteAll удаляет все проблемы и возвращает их количество
func (r *IssueRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM issues;`)
	if err != nil {
		return 0, e.WrapError("repository: delete all issues", err)
	}
	return cmdTag.RowsAffected(), nil
}

// List возвращает проблемы по фильтру, самые новые первыми
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	query, args := buildListQuery(filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, e.WrapError("repository: list issues", err)
	}
	defer rows.Close()

	issues := make([]*models.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, e.WrapError("repository: scan issue row", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, e.WrapError("repository: list iteration", err)
	}
	return issues, nil
}

// buildListQuery собирает SELECT с условиями фильтра
func buildListQuery(filter models.IssueFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Severity != "" {
		conditions = append(conditions, "severity = "+arg(filter.Severity))
	}

	switch filter.Status {
	case models.IssueStatusOpen:
		conditions = append(conditions, "resolved_at IS NULL")
	case models.IssueStatusResolved:
		conditions = append(conditions, "resolved_at IS NOT NULL")
	}

	if b := filter.Bounds; b != nil {
		conditions = append(conditions, fmt.Sprintf("latitude BETWEEN %s AND %s", arg(b.MinLat), arg(b.MaxLat)))
		if b.MinLon <= b.MaxLon {
			conditions = append(conditions, fmt.Sprintf("longitude BETWEEN %s AND %s", arg(b.MinLon), arg(b.MaxLon)))
		} else {
			// Область пересекает 180-й меридиан
			conditions = append(conditions, fmt.Sprintf("(longitude >= %s OR longitude <= %s)", arg(b.MinLon), arg(b.MaxLon)))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + issueColumns + " FROM issues")
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(filter.Limit))
	}
	if filter.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(filter.Offset))
	}
	return sb.String(), args
}

func scanIssue(row pgx.Row) (*models.Issue, error) {
	issue := &models.Issue{}
	err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Severity,
		&issue.Latitude,
		&issue.Longitude,
		&issue.CreatedAt,
		&issue.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	issue.CreatedAt = issue.CreatedAt.UTC()
	if issue.ResolvedAt != nil {
		resolved := issue.ResolvedAt.UTC()
		issue.ResolvedAt = &resolved
	}
	return issue, nil
}

func issueCacheKey(id uuid.UUID) string {
	return issueCachePrefix + id.String()
}

// GetIssueFromCache пытается получить проблему из Redis. Промах кеша - (nil, nil).
func (r *IssueRepository) GetIssueFromCache(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	val, err := r.redisClient.Get(ctx, issueCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get issue from cache: %w", err)
	}

	issue := &models.Issue{}
	if err := json.Unmarshal(val, issue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issue from cache: %w", err)
	}
	return issue, nil
}

// SetIssueCache сохраняет проблему в Redis
func (r *IssueRepository) SetIssueCache(ctx context.Context, issue *models.Issue) error {
	val, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("failed to marshal issue for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, issueCacheKey(issue.ID), val, r.cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set issue in cache: %w", err)
	}
	return nil
}

// InvalidateIssueCache удаляет проблему из Redis кеша
func (r *IssueRepository) InvalidateIssueCache(ctx context.Context, id uuid.UUID) error {
	if err := r.redisClient.Del(ctx, issueCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate issue cache: %w", err)
	}
	return nil
}

// ClearIssueCache удаляет все закешированные проблемы
func (r *IssueRepository) ClearIssueCache(ctx context.Context) error {
	iter := r.redisClient.Scan(ctx, 0, issueCachePrefix+"*", cacheScanPageSize).Iterator()

	keys := make([]string, 0, cacheScanPageSize)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == cacheScanPageSize {
			if err := r.redisClient.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear issue cache: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan issue cache: %w", err)
	}
	if len(keys) > 0 {
		if err := r.redisClient.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to clear issue cache: %w", err)
		}
	}
	return nil
}
