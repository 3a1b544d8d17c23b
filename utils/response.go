package utils

import (
	"aaisaheb/models"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Success responses
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func AcceptedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusAccepted, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Error responses
func ErrorResponse(c *gin.Context, statusCode int, message string, details interface{}) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    getErrorCode(statusCode),
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

func ValidationErrorResponse(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, models.APIResponse{
		Success: false,
		Message: "Validation failed",
		Error: &models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "Validation failed",
			Details: validationErrors,
		},
		Timestamp: time.Now(),
	})
}

// HandleServiceError maps a ServiceError onto its HTTP status.
func HandleServiceError(c *gin.Context, err error) {
	if serviceErr, ok := GetServiceError(err); ok {
		status := serviceErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, models.APIResponse{
			Success: false,
			Message: serviceErr.Message,
			Error: &models.APIError{
				Code:    serviceErr.Code,
				Message: serviceErr.Message,
				Details: serviceErr.Details,
			},
			Timestamp: time.Now(),
		})
		return
	}
	ErrorResponse(c, http.StatusInternalServerError, "Internal server error", err.Error())
}

func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return models.ErrCodeValidation
	case http.StatusUnauthorized:
		return models.ErrCodeUnauthorized
	case http.StatusNotFound:
		return models.ErrCodeNotFound
	case http.StatusConflict:
		return models.ErrCodeConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return models.ErrCodeExternal
	default:
		return models.ErrCodeInternal
	}
}
