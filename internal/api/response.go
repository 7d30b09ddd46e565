package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func BadRequest(c *gin.Context, msg string)         { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)           { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)           { Error(c, http.StatusConflict, msg) }
func TooLarge(c *gin.Context, msg string)           { Error(c, http.StatusRequestEntityTooLarge, msg) }
func Unsupported(c *gin.Context, msg string)        { Error(c, http.StatusUnsupportedMediaType, msg) }
func TooManyRequests(c *gin.Context, msg string)    { Error(c, http.StatusTooManyRequests, msg) }
func Internal(c *gin.Context, msg string)           { Error(c, http.StatusInternalServerError, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { Error(c, http.StatusServiceUnavailable, msg) }
