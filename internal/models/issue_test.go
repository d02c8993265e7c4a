package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		label string
		want  Severity
		ok    bool
	}{
		{"low", SeverityLow, true},
		{"Medium", SeverityMedium, true},
		{" HIGH ", SeverityHigh, true},
		{"critical", SeverityCritical, true},
		{"낮음", SeverityLow, true},
		{"중간", SeverityMedium, true},
		{" 높음", SeverityHigh, true},
		{"심각", SeverityCritical, true},
		{"urgent", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParseSeverity(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIssue_SetResolvedToggle(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	issue := &Issue{Title: "Lane drift", Severity: SeverityMedium, CreatedAt: created}

	resolvedAt := created.Add(time.Hour)
	issue.SetResolved(true, resolvedAt)
	require.NotNil(t, issue.ResolvedAt)
	assert.Equal(t, resolvedAt, *issue.ResolvedAt)

	// Повторная отметка не сдвигает время решения
	issue.SetResolved(true, resolvedAt.Add(time.Hour))
	assert.Equal(t, resolvedAt, *issue.ResolvedAt)

	issue.SetResolved(false, resolvedAt)
	assert.Nil(t, issue.ResolvedAt)
}

func TestIssue_SetResolvedClampsToCreatedAt(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	issue := &Issue{Title: "Clock skew", Severity: SeverityLow, CreatedAt: created}
	assert.False(t, issue.IsResolved())

	issue.SetResolved(true, created.Add(-time.Minute))

	require.NotNil(t, issue.ResolvedAt)
	assert.Equal(t, created, *issue.ResolvedAt)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(0, 0))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
}
