package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/services"
)

// CryptoHandler manages wallet connections and crypto fetches.
type CryptoHandler struct {
	Crypto *services.CryptoService
}

type connectWalletRequest struct {
	EntityID uuid.UUID `json:"entity_id" binding:"required"`
	Address  string    `json:"address" binding:"required"`
	Name     string    `json:"name"`
}

func (h *CryptoHandler) ConnectWallet(c *gin.Context) {
	var req connectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	connection, err := h.Crypto.ConnectWallet(c.Request.Context(), req.EntityID, req.Address, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, connection)
}

func (h *CryptoHandler) DisconnectWallet(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection id"})
		return
	}

	if err := h.Crypto.DisconnectWallet(c.Request.Context(), connectionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CryptoHandler) ListWallets(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity id"})
		return
	}

	wallets, err := h.Crypto.Wallets(c.Request.Context(), entityID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

type cryptoFetchRequest struct {
	EntityID *uuid.UUID `json:"entity_id,omitempty"`
}

// Fetch refreshes one crypto entity or every connected one.
func (h *CryptoHandler) Fetch(c *gin.Context) {
	var req cryptoFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Crypto.Fetch(c.Request.Context(), req.EntityID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
