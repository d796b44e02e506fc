package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custom-alerts-service/internal/config"
	"custom-alerts-service/internal/db"
	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/service"
)

func NewRouter(db *db.DB, logger *logging.Logger, cfg config.Config, svc *service.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	h := NewHandler(db, logger, svc)
	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		api.POST("/alerts", h.CreateAlert)
		api.GET("/alerts", h.GetAlerts)
		api.GET("/alerts/:id", h.GetAlert)
		api.PUT("/alerts/:id", h.UpdateAlert)
		api.DELETE("/alerts/:id", h.DeleteAlert)
		api.POST("/alerts/remove-phone-number", h.RemovePhoneNumber)

		// Site lifecycle hook
		api.DELETE("/sites/:id", h.RemoveSite)

		// Trigger log
		api.GET("/triggered-alerts", h.GetTriggeredAlerts)

		// Manual run invocation (same semantics as a scheduler message)
		api.POST("/runs", h.QueueRun)
	}
	return r
}
