package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const PIDKey = "pid"

// RequireValidPID ensures the path param ":pid" is an int > 0 and stores it
// in the context under PIDKey.
func RequireValidPID() gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, err := strconv.ParseInt(c.Param("pid"), 10, 64)
		if err != nil || pid <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid pid"})
			return
		}
		c.Set(PIDKey, pid)
		c.Next()
	}
}

// GetPID returns the pid stored by RequireValidPID.
func GetPID(c *gin.Context) int64 {
	return c.GetInt64(PIDKey)
}
