package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/drive_issue_log/internal/tracker"
)

// @Summary Get tracking status
// @Description Get tracker state, permission, persisted flags and the last fix.
// @Tags Tracking
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} tracker.Status
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /tracking [get]
func (h *Handler) trackingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Status())
}

// @Summary Start location updates
// @Description Start the location feed. Does nothing if updates are already running.
// @Tags Tracking
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} tracker.Status
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /tracking/start [post]
func (h *Handler) startTracking(c *gin.Context) {
	log := h.logger.WithField("method", "startTracking")

	if err := h.tracker.StartUpdates(c.Request.Context()); err != nil {
		h.respondError(c, log, err, "Failed to start location updates")
		return
	}
	c.JSON(http.StatusOK, h.tracker.Status())
}

// @Summary Stop location updates
// @Description Stop the location feed. A fix already in flight is still recorded.
// @Tags Tracking
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} tracker.Status
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /tracking/stop [post]
func (h *Handler) stopTracking(c *gin.Context) {
	log := h.logger.WithField("method", "stopTracking")

	if err := h.tracker.StopUpdates(c.Request.Context()); err != nil {
		h.respondError(c, log, err, "Failed to stop location updates")
		return
	}
	c.JSON(http.StatusOK, h.tracker.Status())
}

// @Summary Toggle background activity
// @Tags Tracking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param background body BackgroundActivityRequest true "Background activity flag"
// @Success 200 {object} tracker.Status
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /tracking/background [put]
func (h *Handler) setBackgroundActivity(c *gin.Context) {
	var input BackgroundActivityRequest
	log := h.logger.WithField("method", "setBackgroundActivity")

	if !h.bindAndValidate(c, log, &input) {
		return
	}

	if err := h.tracker.SetBackgroundActivity(c.Request.Context(), *input.Enabled); err != nil {
		h.respondError(c, log, err, "Failed to change background activity")
		return
	}
	c.JSON(http.StatusOK, h.tracker.Status())
}

// @Summary Report location permission
// @Description The device reports the user's answer to the location permission prompt.
// @Tags Tracking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param permission body PermissionRequest true "Authorization status"
// @Success 200 {object} tracker.Status
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /tracking/permission [put]
func (h *Handler) setPermission(c *gin.Context) {
	var input PermissionRequest
	log := h.logger.WithField("method", "setPermission")

	if !h.bindAndValidate(c, log, &input) {
		return
	}

	if err := h.feed.SetAuthorization(tracker.AuthorizationStatus(input.Status)); err != nil {
		h.respondError(c, log, err, "Failed to set authorization status")
		return
	}
	log.WithField("status", input.Status).Info("Location permission changed")
	c.JSON(http.StatusOK, h.tracker.Status())
}

// @Summary Push a location fix
// @Description The device pushes one location fix into the feed.
// @Tags Tracking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param fix body LocationFixRequest true "Location fix"
// @Success 202 "Accepted"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Location permission not granted"
// @Failure 409 {object} map[string]string "Location updates are not streaming"
// @Failure 429 {object} map[string]string "Feed buffer full or rate limit exceeded"
// @Router /tracking/fixes [post]
func (h *Handler) pushFix(c *gin.Context) {
	var input LocationFixRequest
	log := h.logger.WithField("method", "pushFix")

	if !h.bindAndValidate(c, log, &input) {
		return
	}

	if err := h.feed.Push(FixRequestToModel(input)); err != nil {
		h.respondError(c, log, err, "Location fix rejected")
		return
	}
	c.Status(http.StatusAccepted)
}

// @Summary Report a feed failure
// @Description The device reports that its location feed failed.
// @Tags Tracking
// @Accept json
// @Security ApiKeyAuth
// @Param error body FeedErrorRequest true "Failure description"
// @Success 202 "Accepted"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Location updates are not streaming"
// @Router /tracking/feed-error [post]
func (h *Handler) reportFeedError(c *gin.Context) {
	var input FeedErrorRequest
	log := h.logger.WithField("method", "reportFeedError")

	if !h.bindAndValidate(c, log, &input) {
		return
	}

	if err := h.feed.Fail(errors.New(input.Message)); err != nil {
		h.respondError(c, log, err, "Feed failure rejected")
		return
	}
	log.WithField("message", input.Message).Warn("Device reported location feed failure")
	c.Status(http.StatusAccepted)
}

// @Summary Live location stream
// @Description WebSocket stream of location updates.
// @Tags Tracking
// @Security ApiKeyAuth
// @Success 101 "Switching Protocols"
// @Router /tracking/live [get]
func (h *Handler) liveLocation(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
