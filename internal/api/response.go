package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondOK(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, data)
}
