package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/pkg/e"
)

// @Summary Create a new issue
// @Description Create an issue at the given coordinates or at the last known vehicle location.
// @Tags Issues
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param issue body CreateIssueRequest true "Issue creation request"
// @Success 201 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "No location fix available"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues [post]
func (h *Handler) createIssue(c *gin.Context) {
	var input CreateIssueRequest
	log := h.logger.WithField("method", "createIssue")

	if !h.bindAndValidate(c, log, &input) {
		return
	}

	model := CreateRequestToIssueModel(input)
	if input.UseCurrentLocation {
		update, ok := h.tracker.LastUpdate()
		if !ok {
			h.respondError(c, log, fmt.Errorf("create issue at current location: %w", e.ErrNoLocation), "No location fix for pin drop")
			return
		}
		model.Latitude = update.Fix.Latitude
		model.Longitude = update.Fix.Longitude
	} else if input.Latitude == nil || input.Longitude == nil {
		log.Warn("Coordinates missing")
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required unless use_current_location is set"})
		return
	}

	if err := h.issueService.CreateIssue(c.Request.Context(), model); err != nil {
		h.respondError(c, log, err, "Failed to create issue in service")
		return
	}
	c.JSON(http.StatusCreated, ModelToIssueResponse(model))
}

// @Summary Get a list of issues
// @Description Get a paginated list of issues, newest first.
// @Tags Issues
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param severity query string false "Severity filter" Enums(low, medium, high, critical)
// @Param status query string false "Resolve state filter" Enums(open, resolved)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(20)
// @Success 200 {array} IssueResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues [get]
func (h *Handler) listIssues(c *gin.Context) {
	log := h.logger.WithField("method", "listIssues")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	filter, err := parseIssueFilter(c)
	if err != nil {
		h.respondError(c, log, err, "Invalid issue filter")
		return
	}

	issues, err := h.issueService.ListIssues(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.respondError(c, log, err, "Failed to list issues from service")
		return
	}

	c.JSON(http.StatusOK, ModelsToIssueResponses(issues))
}

// @Summary Get issue by ID
// @Description Get a single issue by its ID.
// @Tags Issues
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid issue ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id} [get]
func (h *Handler) getIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue ID"})
		return
	}
	log := h.logger.WithField("method", "getIssue").WithField("id", id)

	issue, err := h.issueService.GetIssue(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err, "Failed to get issue from service")
		return
	}
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary Update an existing issue
// @Description Update title, description and severity of an issue. Location and dates are immutable.
// @Tags Issues
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Issue ID"
// @Param issue body UpdateIssueRequest true "Issue update request"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid issue ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id} [put]
func (h *Handler) updateIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue ID"})
		return
	}
	log := h.logger.WithField("method", "updateIssue").WithField("id", id)

	var input UpdateIssueRequest
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	model := UpdateRequestToIssueModel(input)
	model.ID = id

	if err := h.issueService.UpdateIssue(c.Request.Context(), model); err != nil {
		h.respondError(c, log, err, "Failed to update issue in service")
		return
	}
	c.JSON(http.StatusOK, ModelToIssueResponse(model))
}

// @Summary Toggle issue resolution
// @Description Mark an issue resolved or reopen it.
// @Tags Issues
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Issue ID"
// @Param resolve body ResolveIssueRequest true "Resolve state"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid issue ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id}/resolve [put]
func (h *Handler) resolveIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue ID"})
		return
	}
	log := h.logger.WithField("method", "resolveIssue").WithField("id", id)

	var input ResolveIssueRequest
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	issue, err := h.issueService.SetResolved(c.Request.Context(), id, *input.Resolved)
	if err != nil {
		h.respondError(c, log, err, "Failed to change resolve state in service")
		return
	}
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary Delete an issue
// @Description Delete an issue by its ID.
// @Tags Issues
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Issue ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid issue ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id} [delete]
func (h *Handler) deleteIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue ID"})
		return
	}
	log := h.logger.WithField("method", "deleteIssue").WithField("id", id)

	if err := h.issueService.DeleteIssue(c.Request.Context(), id); err != nil {
		h.respondError(c, log, err, "Failed to delete issue in service")
		return
	}

	c.Status(http.StatusNoContent)
}

// parseIssueFilter читает severity и status из query
func parseIssueFilter(c *gin.Context) (models.IssueFilter, error) {
	var filter models.IssueFilter

	if label := c.Query("severity"); label != "" {
		severity, ok := models.ParseSeverity(label)
		if !ok {
			return filter, fmt.Errorf("unknown severity %q: %w", label, e.ErrInvalidInput)
		}
		filter.Severity = severity
	}

	switch status := models.IssueStatus(c.Query("status")); status {
	case models.IssueStatusAll, models.IssueStatusOpen, models.IssueStatusResolved:
		filter.Status = status
	default:
		return filter, fmt.Errorf("unknown status %q: %w", status, e.ErrInvalidInput)
	}
	return filter, nil
}
