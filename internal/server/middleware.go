package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/netlog/internal/policy"
)

// requestLogger logs one line per request once the handler returns.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": time.Since(start).Round(time.Microsecond).String(),
			"client":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithError(c.Errors.Last())
		}
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request")
		}
	}
}

// actor reads the caller's identity from the trusted headers.
func (s *server) actor(c *gin.Context) policy.Actor {
	return policy.Actor{
		ID:   strings.TrimSpace(c.GetHeader(s.actorHeader)),
		Role: policy.ParseRole(strings.ToLower(strings.TrimSpace(c.GetHeader(s.roleHeader)))),
	}
}
