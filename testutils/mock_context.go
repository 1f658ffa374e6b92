package testutils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTestGinContext builds a handler context for req carrying the given path
// params, as the router would have matched them.
func GetTestGinContext(w http.ResponseWriter, req *http.Request, params ...gin.Param) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	return c
}
