// Package middleware holds the gin middleware chain of the analysis
// service: request identity, panic recovery, access logging, rate
// shaping and JWT auth. Identity values set here flow into the request
// context so pkg/logger picks them up everywhere downstream.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an identifier: the caller's
// X-Request-ID when supplied (so a client polling a job can correlate
// its submit and status calls), a fresh UUID otherwise. The ID is
// echoed in the response header and bound to both the gin context and
// the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Header(requestIDHeader, id)
		bindIdentity(c, string(logger.RequestIDKey), logger.RequestIDKey, id)

		c.Next()
	}
}

// bindIdentity stores an identity value under the gin context key and
// mirrors it into the request context for the logger.
func bindIdentity(c *gin.Context, ginKey string, ctxKey logger.ContextKey, value string) {
	c.Set(ginKey, value)
	ctx := context.WithValue(c.Request.Context(), ctxKey, value)
	c.Request = c.Request.WithContext(ctx)
}

// GetRequestID gets the request ID from gin context
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(string(logger.RequestIDKey)); exists {
		return id.(string)
	}
	return ""
}
