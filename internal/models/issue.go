package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity - порядковая классификация важности проблемы
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities перечисляет допустимые значения по возрастанию важности
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// IsValid сообщает, является ли значение одним из четырех известных уровней
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// severityAliases - метки уровней, которые пишет мобильное приложение в своих выгрузках
var severityAliases = map[string]Severity{
	"낮음": SeverityLow,
	"중간": SeverityMedium,
	"높음": SeverityHigh,
	"심각": SeverityCritical,
}

// ParseSeverity разбирает метку уровня без учета регистра и пробелов
func ParseSeverity(label string) (Severity, bool) {
	label = strings.TrimSpace(label)
	if s, ok := severityAliases[label]; ok {
		return s, true
	}
	s := Severity(strings.ToLower(label))
	if !s.IsValid() {
		return "", false
	}
	return s, true
}

// Issue - проблема, замеченная во время тестового заезда и привязанная к координате
type Issue struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    Severity   `json:"severity"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// IsResolved сообщает, отмечена ли проблема решенной
func (i *Issue) IsResolved() bool {
	return i.ResolvedAt != nil
}

// SetResolved выставляет или снимает отметку о решении.
// ResolvedAt никогда не бывает раньше CreatedAt.
func (i *Issue) SetResolved(resolved bool, now time.Time) {
	if !resolved {
		i.ResolvedAt = nil
		return
	}
	if i.ResolvedAt != nil {
		return
	}
	if now.Before(i.CreatedAt) {
		now = i.CreatedAt
	}
	i.ResolvedAt = &now
}

// ValidCoordinates проверяет диапазоны WGS84
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// IssueStatus - фильтр списка по состоянию решения
type IssueStatus string

const (
	IssueStatusAll      IssueStatus = ""
	IssueStatusOpen     IssueStatus = "open"
	IssueStatusResolved IssueStatus = "resolved"
)

// BoundingBox - прямоугольная область карты
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// IssueFilter задает выборку проблем. Сортировка всегда по created_at по убыванию.
// Limit == 0 означает без ограничения.
type IssueFilter struct {
	Severity Severity
	Status   IssueStatus
	Bounds   *BoundingBox
	Limit    int
	Offset   int
}
