package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/services"
	"github.com/holdsight/wealth-api/store"
)

// EntityHandler exposes the entity catalog and the credential lifecycle.
type EntityHandler struct {
	Entities    *store.EntityStore
	Credentials *store.CredentialsStore
	Login       *services.LoginService
}

type entityView struct {
	models.Entity
	Connected  bool              `json:"connected"`
	LoginState models.LoginState `json:"login_state"`
}

// List merges the native catalog with entities created at runtime and
// annotates each with its connection status.
func (h *EntityHandler) List(c *gin.Context) {
	stored, err := h.Entities.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	connected, err := h.Credentials.ConnectedEntities(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	connectedSet := map[uuid.UUID]bool{}
	for _, id := range connected {
		connectedSet[id] = true
	}

	seen := map[uuid.UUID]bool{}
	views := make([]entityView, 0, len(stored)+len(models.NativeEntities))
	for _, entity := range stored {
		seen[entity.ID] = true
		views = append(views, entityView{
			Entity:     entity,
			Connected:  connectedSet[entity.ID],
			LoginState: h.Login.State(entity.ID),
		})
	}
	for _, entity := range models.NativeEntities {
		if seen[entity.ID] {
			continue
		}
		views = append(views, entityView{
			Entity:     entity,
			LoginState: models.StateLoggedOut,
		})
	}

	c.JSON(http.StatusOK, gin.H{"entities": views})
}

// ListDisabled returns the entities hidden from fetch runs.
func (h *EntityHandler) ListDisabled(c *gin.Context) {
	entities, err := h.Entities.GetDisabled(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": entities})
}

type connectEntityRequest struct {
	EntityID    uuid.UUID                `json:"entity_id" binding:"required"`
	Credentials models.EntityCredentials `json:"credentials"`
	TwoFactor   *models.TwoFactor        `json:"two_factor,omitempty"`
}

// Connect logs into a native entity with user-supplied credentials.
func (h *EntityHandler) Connect(c *gin.Context) {
	var req connectEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Login.Connect(c.Request.Context(), req.EntityID, req.Credentials, req.TwoFactor)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	switch result.Code {
	case models.LoginCodeRequested:
		status = http.StatusAccepted
	case models.LoginInvalidCredentials, models.LoginInvalidCode:
		status = http.StatusUnauthorized
	case models.LoginManual, models.LoginUnexpectedError:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

// Disconnect wipes the entity's credentials and session.
func (h *EntityHandler) Disconnect(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity id"})
		return
	}

	if err := h.Login.Disconnect(c.Request.Context(), entityID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
