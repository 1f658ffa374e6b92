package routes

import (
	"github.com/gin-gonic/gin"

	"notion-lite/workspace/services"
)

// RegisterWebSocketRoutes sets up the live page feed endpoint
func RegisterWebSocketRoutes(router *gin.Engine, wsService services.WebSocketServiceInterface) {
	wsGroup := router.Group("/api/v1/ws")
	{
		wsGroup.GET("", func(c *gin.Context) {
			wsService.HandleConnection(c)
		})
	}
}
