package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shenikar/drive_issue_log/internal/config"
	"github.com/shenikar/drive_issue_log/internal/live"
	"github.com/shenikar/drive_issue_log/internal/service"
	"github.com/shenikar/drive_issue_log/internal/tracker"
	"github.com/shenikar/drive_issue_log/pkg/e"
	customvalidator "github.com/shenikar/drive_issue_log/pkg/validator"
	"github.com/sirupsen/logrus"
)

// Services - сервисы, которые использует Handler
type Services struct {
	Issues   service.IssueService
	Backup   service.BackupService
	Settings service.SettingsService
}

type Handler struct {
	issueService    service.IssueService
	backupService   service.BackupService
	settingsService service.SettingsService
	tracker         *tracker.Tracker
	feed            *tracker.DeviceFeed
	hub             *live.Hub
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(services Services, trk *tracker.Tracker, feed *tracker.DeviceFeed, hub *live.Hub, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		issueService:    services.Issues,
		backupService:   services.Backup,
		settingsService: services.Settings,
		tracker:         trk,
		feed:            feed,
		hub:             hub,
		logger:          logger,
		validate:        customvalidator.New(),
		cfg:             cfg,
	}
}

// statusFromError сопоставляет доменные ошибки с HTTP статусами
func statusFromError(err error) int {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, e.ErrForbidden), errors.Is(err, e.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, e.ErrConflict), errors.Is(err, e.ErrNoLocation):
		return http.StatusConflict
	case errors.Is(err, e.ErrFeedFull):
		return http.StatusTooManyRequests
	case errors.Is(err, e.ErrDeadline):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ответ об ошибке; внутренние детали наружу не отдаются
func (h *Handler) respondError(c *gin.Context, log *logrus.Entry, err error, message string) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error(message)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	log.WithError(err).Warn(message)
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindAndValidate читает JSON тело и проверяет его. При ошибке ответ уже записан.
func (h *Handler) bindAndValidate(c *gin.Context, log *logrus.Entry, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	clients, lastCount := h.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"tracking_state": h.tracker.Status().State,
		"live_clients":   clients,
		"last_fix_count": lastCount,
	})
}
