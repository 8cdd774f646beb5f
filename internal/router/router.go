package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"sarvbot/internal/handler/api"
	"sarvbot/internal/middleware"
)

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, admin *api.AdminHandler, apiKey string, logger *zap.Logger) {
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	e.GET("/api/health", admin.Health)

	g := e.Group("/api", middleware.APIAuth(apiKey))
	g.GET("/panels/:code/test", admin.TestPanel)
	g.POST("/purchase", admin.Purchase)
}
