package middleware

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle recovers panics and renders errors attached with c.Error.
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			last := c.Errors.Last()
			eh.logger.WithFields(logrus.Fields{
				"error":      last.Error(),
				"request_id": c.GetString("request_id"),
				"path":       c.Request.URL.Path,
			}).Warn("Request failed")
			utils.HandleServiceError(c, last.Err)
		}
	}
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	}).Error("Panic recovered")

	apiErr := &models.APIError{
		Code:    models.ErrCodeInternal,
		Message: "Internal server error",
	}
	if eh.environment == "development" {
		apiErr.Details = map[string]interface{}{"panic": err}
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, models.APIResponse{
		Success:   false,
		Message:   "Internal server error",
		Error:     apiErr,
		Timestamp: time.Now(),
	})
}
