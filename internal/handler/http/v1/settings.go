package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Get settings
// @Description Get default severity, accent color and dark mode.
// @Tags Settings
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SettingsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /settings [get]
func (h *Handler) getSettings(c *gin.Context) {
	log := h.logger.WithField("method", "getSettings")

	settings, err := h.settingsService.GetSettings(c.Request.Context())
	if err != nil {
		h.respondError(c, log, err, "Failed to get settings")
		return
	}
	c.JSON(http.StatusOK, ModelToSettingsResponse(settings))
}

// @Summary Update settings
// @Tags Settings
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param settings body SettingsRequest true "New settings"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /settings [put]
func (h *Handler) updateSettings(c *gin.Context) {
	var input SettingsRequest
	log := h.logger.WithField("method", "updateSettings")

	if !h.bindAndValidate(c, log, &input) {
		return
	}

	settings := SettingsRequestToModel(input)
	if err := h.settingsService.UpdateSettings(c.Request.Context(), settings); err != nil {
		h.respondError(c, log, err, "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, ModelToSettingsResponse(settings))
}

// @Summary Reset all data
// @Description Delete every issue. Available only when DEV_MODE is enabled.
// @Tags Settings
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} ResetResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Not in developer mode"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /settings/reset [post]
func (h *Handler) resetData(c *gin.Context) {
	log := h.logger.WithField("method", "resetData")

	deleted, err := h.settingsService.ResetData(c.Request.Context())
	if err != nil {
		h.respondError(c, log, err, "Failed to reset data")
		return
	}

	log.WithField("deleted", deleted).Warn("All issues deleted by developer reset")
	c.JSON(http.StatusOK, ResetResponse{Deleted: deleted})
}
