package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"notion-lite/workspace/services"
)

func RegisterCaptureRoutes(router *gin.Engine, captureService services.CaptureServiceInterface) {
	router.GET("/api/capture", CaptureStatus)
	router.POST("/api/capture", func(c *gin.Context) { Capture(c, captureService) })
}

func CaptureStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Quick capture endpoint is ready. POST content to capture it."})
}

func Capture(c *gin.Context, captureService services.CaptureServiceInterface) {
	var req services.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := captureService.Capture(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Content and userId are required"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
