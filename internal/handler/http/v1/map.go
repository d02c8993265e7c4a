package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/pkg/e"
)

const (
	featureKindIssue        = "issue"
	featureKindUserLocation = "user_location"
)

// @Summary Get map markers
// @Description Get issues as GeoJSON points plus the last known vehicle location.
// @Tags Map
// @Produce json
// @Security ApiKeyAuth
// @Param severity query string false "Severity filter" Enums(low, medium, high, critical)
// @Param status query string false "Resolve state filter" Enums(open, resolved)
// @Param min_lat query number false "Bounding box south edge"
// @Param min_lon query number false "Bounding box west edge"
// @Param max_lat query number false "Bounding box north edge"
// @Param max_lon query number false "Bounding box east edge"
// @Success 200 {object} map[string]interface{} "GeoJSON FeatureCollection"
// @Failure 400 {object} map[string]string "Invalid filter or bounding box"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /map [get]
func (h *Handler) mapIssues(c *gin.Context) {
	log := h.logger.WithField("method", "mapIssues")

	filter, err := parseIssueFilter(c)
	if err != nil {
		h.respondError(c, log, err, "Invalid issue filter")
		return
	}
	if filter.Bounds, err = parseBounds(c); err != nil {
		h.respondError(c, log, err, "Invalid bounding box")
		return
	}

	issues, err := h.issueService.MapIssues(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, log, err, "Failed to list map issues from service")
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, issue := range issues {
		fc.AddFeature(issueFeature(issue))
	}
	if update, ok := h.tracker.LastUpdate(); ok {
		fc.AddFeature(userLocationFeature(update))
	}

	c.JSON(http.StatusOK, fc)
}

func issueFeature(issue *models.Issue) *geojson.Feature {
	// В GeoJSON порядок координат: долгота, широта
	f := geojson.NewPointFeature([]float64{issue.Longitude, issue.Latitude})
	f.ID = issue.ID.String()
	f.SetProperty("kind", featureKindIssue)
	f.SetProperty("title", issue.Title)
	f.SetProperty("severity", string(issue.Severity))
	f.SetProperty("resolved", issue.IsResolved())
	f.SetProperty("created_at", issue.CreatedAt)
	return f
}

func userLocationFeature(update models.LocationUpdate) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{update.Fix.Longitude, update.Fix.Latitude})
	f.SetProperty("kind", featureKindUserLocation)
	f.SetProperty("stationary", update.Stationary)
	f.SetProperty("timestamp", update.Fix.Timestamp)
	if update.Fix.HorizontalAccuracy > 0 {
		f.SetProperty("horizontal_accuracy", update.Fix.HorizontalAccuracy)
	}
	return f
}

// parseBounds читает область карты. Задаются либо все четыре края, либо ни одного.
func parseBounds(c *gin.Context) (*models.BoundingBox, error) {
	keys := []string{"min_lat", "min_lon", "max_lat", "max_lon"}
	values := make([]float64, len(keys))
	present := 0

	for i, key := range keys {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", key, e.ErrInvalidInput)
		}
		values[i] = v
		present++
	}

	switch present {
	case 0:
		return nil, nil
	case len(keys):
		return &models.BoundingBox{MinLat: values[0], MinLon: values[1], MaxLat: values[2], MaxLon: values[3]}, nil
	default:
		return nil, fmt.Errorf("bounding box needs min_lat, min_lon, max_lat and max_lon: %w", e.ErrInvalidInput)
	}
}
