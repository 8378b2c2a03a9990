package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/utils"
)

// AuthHandler unlocks the API with the master password and hands out the
// bearer token every other route requires.
type AuthHandler struct {
	Cfg config.Config
}

type unlockRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Unlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.Cfg.MasterPasswordHash == "" || h.Cfg.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Authentication is not configured"})
		return
	}

	if !utils.CheckPassword(req.Password, h.Cfg.MasterPasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	token, err := utils.GenerateAccessToken(h.Cfg.JWTSecret, 12*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token})
}
