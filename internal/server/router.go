package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"running-tracker/internal/line"
)

// NewRouter assembles the HTTP surface: the LINE webhook (signature-checked,
// unauthenticated) and the JWT-protected client API.
func NewRouter(h *Handler, webhook *line.Webhook, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/webhook/line", webhook.Handle)

	api := router.Group("/api/v1", JWTAuth(jwtSecret))
	{
		api.POST("/line/linking-code", h.GenerateLinkingCode)
		api.DELETE("/line/connection", h.DisconnectLine)

		api.GET("/notification-preferences", h.GetPreferences)
		api.PUT("/notification-preferences", h.UpdatePreferences)

		api.POST("/schedules", h.CreateSchedule)
		api.GET("/schedules", h.ListSchedules)
		api.PATCH("/schedules/:id", h.UpdateSchedule)
		api.DELETE("/schedules/:id", h.DeleteSchedule)
	}

	return router
}
