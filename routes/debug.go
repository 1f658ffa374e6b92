package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"notion-lite/workspace/services"
)

// SetupDebugRoutes sets up routes for debugging
func SetupDebugRoutes(router *gin.Engine, events services.EventHandlerServiceInterface, wsService services.WebSocketServiceInterface) {
	debugGroup := router.Group("/api/v1/debug")
	{
		// Events written by block operations but not yet published
		debugGroup.GET("/event-queue", func(c *gin.Context) {
			pending, err := events.PendingEvents()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"pending_events": len(pending),
				"events":         pending,
				"time":           time.Now(),
			})
		})

		debugGroup.GET("/clients", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"clients": wsService.ClientCount(),
				"time":    time.Now(),
			})
		})
	}
}
