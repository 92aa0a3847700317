package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/denisAlshanov/mediagrab/internal/models"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
	"github.com/denisAlshanov/mediagrab/internal/services/downloader"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

type MediaHandler struct {
	downloader *downloader.Downloader
}

func NewMediaHandler(downloader *downloader.Downloader) *MediaHandler {
	return &MediaHandler{
		downloader: downloader,
	}
}

// Acquire godoc
// @Summary Acquire media from a YouTube link
// @Description Runs the tiered acquisition for the link and returns the recorded outcome
// @Tags media
// @Accept json
// @Produce json
// @Param request body models.AcquireRequest true "Link and mode"
// @Success 200 {object} models.Acquisition
// @Failure 400 {object} map[string]interface{}
// @Failure 408 {object} models.Acquisition
// @Failure 500 {object} models.Acquisition
// @Router /api/v1/media/acquire [post]
func (h *MediaHandler) Acquire(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.AcquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	record, err := h.downloader.Grab(ctx, req.Link, req.Mode)
	if err != nil {
		h.handleError(c, "Failed to acquire media", err)
		return
	}

	c.JSON(statusCodeFor(record.Status), record)
}

// Formats godoc
// @Summary Preview the format catalog and plan
// @Description Lists the classified formats of a link and the ordered candidates an acquisition would try
// @Tags media
// @Produce json
// @Param link query string true "YouTube link"
// @Param mode query string false "video or audio_only"
// @Success 200 {object} models.FormatsResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/media/formats [get]
func (h *MediaHandler) Formats(c *gin.Context) {
	ctx := c.Request.Context()

	link := c.Query("link")
	if link == "" {
		h.errorResponse(c, utils.NewValidationError("Query parameter link is required", nil))
		return
	}

	response, err := h.downloader.Formats(ctx, link, c.Query("mode"))
	if err != nil {
		h.handleError(c, "Failed to list formats", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// List godoc
// @Summary List acquisitions
// @Description Returns recorded acquisitions, newest first
// @Tags media
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.AcquisitionListResponse
// @Router /api/v1/media [get]
func (h *MediaHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		h.errorResponse(c, utils.NewValidationError("Invalid page parameter", map[string]interface{}{"page": c.Query("page")}))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		h.errorResponse(c, utils.NewValidationError("Invalid limit parameter", map[string]interface{}{"limit": c.Query("limit")}))
		return
	}

	response, err := h.downloader.List(ctx, models.PaginationOptions{Page: page, Limit: limit})
	if err != nil {
		h.handleError(c, "Failed to list acquisitions", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Get godoc
// @Summary Get an acquisition
// @Description Returns one acquisition with its attempt log
// @Tags media
// @Produce json
// @Param id path string true "Acquisition ID"
// @Success 200 {object} models.Acquisition
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	record, err := h.downloader.Get(ctx, c.Param("id"))
	if err != nil {
		h.handleError(c, "Failed to get acquisition", err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// File godoc
// @Summary Download the artifact of an acquisition
// @Description Streams the delivered media file or placeholder
// @Tags media
// @Produce octet-stream
// @Param id path string true "Acquisition ID"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/media/{id}/file [get]
func (h *MediaHandler) File(c *gin.Context) {
	ctx := c.Request.Context()

	reader, record, err := h.downloader.Open(ctx, c.Param("id"))
	if err != nil {
		h.handleError(c, "Failed to open artifact", err)
		return
	}
	defer reader.Close()

	contentType := record.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", artifactFileName(record)))
	if record.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	}
	if record.IsSynthetic {
		c.Header("X-Synthetic-Placeholder", "true")
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		utils.LogError(ctx, "Failed to stream artifact", err, utils.Fields{"acquisition_id": record.ID.String()})
	}
}

// Delete godoc
// @Summary Delete an acquisition
// @Description Removes the stored artifact and the record
// @Tags media
// @Produce json
// @Param id path string true "Acquisition ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	id := c.Param("id")
	if err := h.downloader.Delete(ctx, id); err != nil {
		h.handleError(c, "Failed to delete acquisition", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Acquisition deleted successfully",
		"id":      id,
	})
}

func (h *MediaHandler) handleError(c *gin.Context, message string, err error) {
	if appErr, ok := err.(*utils.AppError); ok {
		h.errorResponse(c, appErr)
		return
	}
	utils.LogError(c.Request.Context(), message, err)
	h.errorResponse(c, utils.NewInternalError())
}

func (h *MediaHandler) errorResponse(c *gin.Context, err *utils.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"error":      err,
		"request_id": c.GetString("request_id"),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

func statusCodeFor(status acquisition.Status) int {
	switch status {
	case acquisition.StatusHardFailure:
		return http.StatusInternalServerError
	case acquisition.StatusCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusOK
	}
}

func artifactFileName(record *models.Acquisition) string {
	name := record.Title
	if name == "" {
		name = record.SourceID
	}
	if record.IsSynthetic {
		name += " (placeholder)"
	}
	return utils.SanitizeFileName(name + path.Ext(record.ArtifactRef))
}
