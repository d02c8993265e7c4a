package models

import "time"

// BackupRecord - плоское представление проблемы в файле экспорта
type BackupRecord struct {
	Title            string     `json:"title"`
	IssueDescription string     `json:"issueDescription"`
	Severity         string     `json:"severity"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	CreatedAt        time.Time  `json:"createdAt"`
	ResolvedAt       *time.Time `json:"resolvedAt"`
}

// ImportResult - итог импорта
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
