package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/services"
)

// WSHandler pushes fetch events to connected clients so the UI can refresh
// without polling.
type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 1024 * 1024
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleError(func(s *melody.Session, err error) {
		config.Logger().WithField("error", err.Error()).Warn("websocket error")
	})

	return &WSHandler{M: m}
}

// HandleWS upgrades the request and keeps the session open.
func (h *WSHandler) HandleWS(c *gin.Context) {
	if err := h.M.HandleRequest(c.Writer, c.Request); err != nil {
		config.Logger().WithField("error", err.Error()).Warn("websocket upgrade failed")
	}
}

// Publish implements services.EventSink.
func (h *WSHandler) Publish(event services.FetchEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := h.M.Broadcast(msg); err != nil {
		config.Logger().WithField("error", err.Error()).Warn("websocket broadcast failed")
	}
}
