package v1

import (
	"github.com/shenikar/drive_issue_log/internal/models"
)

// severityFromLabel разбирает метку без учета регистра.
// Неизвестная метка передается как есть, сервис отклонит ее.
func severityFromLabel(label string) models.Severity {
	if label == "" {
		return ""
	}
	if severity, ok := models.ParseSeverity(label); ok {
		return severity
	}
	return models.Severity(label)
}

// CreateRequestToIssueModel преобразует DTO создания в доменную модель.
// Координаты заполняются отдельно, если выбрано текущее местоположение.
func CreateRequestToIssueModel(dto CreateIssueRequest) *models.Issue {
	issue := &models.Issue{
		Title:       dto.Title,
		Description: dto.Description,
		Severity:    severityFromLabel(dto.Severity),
	}
	if dto.Latitude != nil {
		issue.Latitude = *dto.Latitude
	}
	if dto.Longitude != nil {
		issue.Longitude = *dto.Longitude
	}
	return issue
}

func UpdateRequestToIssueModel(dto UpdateIssueRequest) *models.Issue {
	return &models.Issue{
		Title:       dto.Title,
		Description: dto.Description,
		Severity:    severityFromLabel(dto.Severity),
	}
}

// ModelToIssueResponse преобразует доменную модель в DTO для ответа
func ModelToIssueResponse(model *models.Issue) *IssueResponse {
	return &IssueResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Severity:    string(model.Severity),
		Latitude:    model.Latitude,
		Longitude:   model.Longitude,
		Resolved:    model.IsResolved(),
		CreatedAt:   model.CreatedAt,
		ResolvedAt:  model.ResolvedAt,
	}
}

// ModelsToIssueResponses преобразует слайс моделей в слайс DTO
func ModelsToIssueResponses(issues []*models.Issue) []*IssueResponse {
	responses := make([]*IssueResponse, len(issues))
	for i, issue := range issues {
		responses[i] = ModelToIssueResponse(issue)
	}
	return responses
}

func SettingsRequestToModel(dto SettingsRequest) *models.Settings {
	return &models.Settings{
		DefaultSeverity: severityFromLabel(dto.DefaultSeverity),
		AccentColorHex:  dto.AccentColorHex,
		DarkModeEnabled: dto.DarkModeEnabled,
	}
}

func ModelToSettingsResponse(settings *models.Settings) *SettingsResponse {
	return &SettingsResponse{
		DefaultSeverity: string(settings.DefaultSeverity),
		AccentColorHex:  settings.AccentColorHex,
		DarkModeEnabled: settings.DarkModeEnabled,
	}
}

func FixRequestToModel(dto LocationFixRequest) models.LocationFix {
	fix := models.LocationFix{
		Latitude:           *dto.Latitude,
		Longitude:          *dto.Longitude,
		Altitude:           dto.Altitude,
		HorizontalAccuracy: dto.HorizontalAccuracy,
		Speed:              dto.Speed,
		Course:             dto.Course,
		Stationary:         dto.Stationary,
	}
	if dto.Timestamp != nil {
		fix.Timestamp = dto.Timestamp.UTC()
	}
	return fix
}
