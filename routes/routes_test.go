package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/holdsight/wealth-api/handlers"
	"github.com/holdsight/wealth-api/middleware"
)

func TestWSRouteRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	protected := router.Group("/api/v1")
	protected.Use(middleware.Auth("test-secret"))
	SetupWSRoutes(protected, Services{WS: handlers.NewWSHandler()})

	req := httptest.NewRequest("GET", "/api/v1/ws/fetches", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}
