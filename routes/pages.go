package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notion-lite/workspace/services"
)

// RegisterPageRoutes exposes manual status sweeps of workflow pages.
func RegisterPageRoutes(group *gin.RouterGroup, enforcer services.StatusEnforcerInterface) {
	group.POST("/pages/:pageId/sweep", func(c *gin.Context) { SweepPage(c, enforcer) })
}

func SweepPage(c *gin.Context, enforcer services.StatusEnforcerInterface) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	report, err := enforcer.Sweep(c.Request.Context(), userID, c.Param("pageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
