package v1

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

const maxImportSize = 10 << 20

// exportFileName - имя файла выгрузки с отметкой времени
func exportFileName(now time.Time) string {
	return fmt.Sprintf("issues-%s.json", now.UTC().Format("20060102-150405"))
}

// @Summary Export all issues
// @Description Download every issue as a JSON array.
// @Tags Backup
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {file} file "JSON backup"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /backup/export [get]
func (h *Handler) exportIssues(c *gin.Context) {
	log := h.logger.WithField("method", "exportIssues")

	path, err := h.backupService.Export(c.Request.Context())
	if err != nil {
		h.respondError(c, log, err, "Failed to export issues")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.WithError(err).Warn("Failed to remove export file")
		}
	}()

	c.FileAttachment(path, exportFileName(time.Now()))
}

// @Summary Import issues
// @Description Upload a JSON backup. Malformed records are skipped and counted.
// @Tags Backup
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "JSON backup"
// @Success 200 {object} ImportResponse
// @Failure 400 {object} map[string]string "Missing file or not a JSON array"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 413 {object} map[string]string "Backup file too large"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /backup/import [post]
func (h *Handler) importIssues(c *gin.Context) {
	log := h.logger.WithField("method", "importIssues")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.WithField("limit", tooLarge.Limit).Warn("Backup upload exceeds size limit")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("backup file exceeds %d bytes", tooLarge.Limit)})
			return
		}
		log.WithError(err).Warn("Backup file missing from request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		log.WithError(err).Error("Failed to open uploaded backup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	defer file.Close()

	result, err := h.backupService.Import(c.Request.Context(), file)
	if err != nil {
		h.respondError(c, log, err, "Failed to import issues")
		return
	}

	log.WithField("imported", result.Imported).WithField("skipped", result.Skipped).Info("Backup imported")
	c.JSON(http.StatusOK, ImportResponse{Imported: result.Imported, Skipped: result.Skipped})
}
