package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/pkg/logger"
)

// Recovery converts a handler panic into a 500 response. The log line
// carries whatever identity the request context has accumulated
// (request ID, tenant, user) plus the stack; the response repeats the
// request ID so a client report can be matched to the log.
//
// Pipeline goroutines are not covered here: they run outside the
// request cycle, and the property estimator does its own recover.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					"error", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": GetRequestID(c),
				})
			}
		}()

		c.Next()
	}
}
