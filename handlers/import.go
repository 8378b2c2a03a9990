package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/services"
)

// ImportHandler accepts spreadsheet uploads for virtual data.
type ImportHandler struct {
	Imports *services.VirtualImportService
}

// Run takes a multipart upload: the sheet under "file", the template JSON
// under "template" and the virtual source under "source".
func (h *ImportHandler) Run(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	var template models.ImportTemplate
	if raw := c.PostForm("template"); raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template is required"})
		return
	} else if err := json.Unmarshal([]byte(raw), &template); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template: " + err.Error()})
		return
	}

	source := models.DataSource(c.DefaultPostForm("source", string(models.SourceManual)))

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	result, err := h.Imports.Import(c.Request.Context(), source, fileHeader.Filename, file, template)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	switch result.Code {
	case models.ImportInvalidTemplate, models.ImportUnsupportedFileFormat:
		status = http.StatusUnprocessableEntity
	case models.ImportDisabled:
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

// Last returns the journal rows of the most recent import for a source.
func (h *ImportHandler) Last(c *gin.Context) {
	source := models.DataSource(c.DefaultQuery("source", string(models.SourceManual)))

	rows, err := h.Imports.LastImport(c.Request.Context(), source)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imports": rows})
}
