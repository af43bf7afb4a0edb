// internal/api/middleware/logger.go
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	// StoreHeader carries the tenant every request is scoped to
	StoreHeader = "X-Store-ID"

	storeKey = "store_id"
)

// Logger is a middleware that logs the request details
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Str("user-agent", c.Request.UserAgent()).
			Str("store_id", c.GetString(storeKey)).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request processed")
	}
}

// Recovery recovers from panics and logs the error
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Msg("Recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// Tenant rejects requests without a store id. Browsers cannot set headers on
// EventSource connections, so the store_id query parameter is accepted too.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeID := strings.TrimSpace(c.GetHeader(StoreHeader))
		if storeID == "" {
			storeID = strings.TrimSpace(c.Query(storeKey))
		}
		if storeID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "missing store id",
				"details": "set the " + StoreHeader + " header",
			})
			return
		}
		c.Set(storeKey, storeID)
		c.Next()
	}
}

// StoreID returns the tenant resolved by Tenant
func StoreID(c *gin.Context) string {
	return c.GetString(storeKey)
}
