package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON helpers for the non-HTML surface (status polling, websocket upgrade errors).

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func NotFound(c *gin.Context, msg string)           { Error(c, http.StatusNotFound, msg) }
func Internal(c *gin.Context, msg string)           { Error(c, http.StatusInternalServerError, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { Error(c, http.StatusServiceUnavailable, msg) }
