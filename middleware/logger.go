package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Logger    *logrus.Logger
	SkipPaths []string
}

// LoggerMiddleware logs each request with a request id. Payload bodies are
// never logged since SOS requests carry the user's position.
func LoggerMiddleware(config LoggerConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		if shouldSkipPath(c.Request.URL.Path, config.SkipPaths) {
			c.Next()
			return
		}

		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime)

		fields := logrus.Fields{
			"request_id":    requestID,
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"status":        c.Writer.Status(),
			"latency_ms":    float64(duration.Nanoseconds()) / 1000000.0,
			"ip":            c.ClientIP(),
			"response_size": c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		logRequest(config.Logger, c.Writer.Status(), duration, fields)
	}
}

// DefaultLoggerMiddleware skips health probes and the WebSocket upgrade.
func DefaultLoggerMiddleware() gin.HandlerFunc {
	return LoggerMiddleware(LoggerConfig{
		Logger:    logrus.StandardLogger(),
		SkipPaths: []string{"/health", "/ws", "/favicon.ico"},
	})
}

func logRequest(logger *logrus.Logger, statusCode int, duration time.Duration, fields logrus.Fields) {
	message := fmt.Sprintf("%s %s %d %s", fields["method"], fields["path"], statusCode, duration)

	switch {
	case statusCode >= 500:
		logger.WithFields(fields).Error(message)
	case statusCode >= 400:
		logger.WithFields(fields).Warn(message)
	case duration > 5*time.Second:
		logger.WithFields(fields).Warn(message + " (slow request)")
	default:
		logger.WithFields(fields).Info(message)
	}
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}
