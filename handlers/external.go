package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/services"
)

// ExternalHandler drives the PSD2 link flow and external fetches.
type ExternalHandler struct {
	External *services.ExternalService
}

func (h *ExternalHandler) ListInstitutions(c *gin.Context) {
	country := c.DefaultQuery("country", "ES")

	institutions, err := h.External.ListInstitutions(c.Request.Context(), country)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"institutions": institutions})
}

func (h *ExternalHandler) Connect(c *gin.Context) {
	var req models.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.InstitutionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "institution_id is required"})
		return
	}
	if req.RedirectHost == "" {
		req.RedirectHost = c.Request.Header.Get("Origin")
	}

	result, err := h.External.Connect(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CompleteLink finishes the flow after the provider redirect.
func (h *ExternalHandler) CompleteLink(c *gin.Context) {
	externalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid external entity id"})
		return
	}

	row, err := h.External.CompleteLink(c.Request.Context(), externalID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ExternalHandler) Unlink(c *gin.Context) {
	externalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid external entity id"})
		return
	}

	if err := h.External.Unlink(c.Request.Context(), externalID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Fetch refreshes one linked external entity.
func (h *ExternalHandler) Fetch(c *gin.Context) {
	var req models.ExternalFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.External.Fetch(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
