package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	v.RegisterValidation("phone", validatePhone)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return []ValidationError{{Message: err.Error()}}
		}
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: vs.getErrorMessage(fe),
			})
		}
	}

	return validationErrors
}

// Validate returns a VALIDATION_ERROR ServiceError, or nil when s is valid.
func (vs *ValidationService) Validate(s interface{}) error {
	validationErrors := vs.ValidateStruct(s)
	if len(validationErrors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(validationErrors))
	for _, ve := range validationErrors {
		messages = append(messages, ve.Message)
	}
	return NewValidationError(strings.Join(messages, "; "))
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "latitude":
		return fmt.Sprintf("%s must be a valid latitude", fe.Field())
	case "longitude":
		return fmt.Sprintf("%s must be a valid longitude", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min", "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validatePhone(fl validator.FieldLevel) bool {
	phone := strings.TrimSpace(fl.Field().String())
	if len(phone) < 3 || len(phone) > 16 {
		return false
	}
	for i, r := range phone {
		if r == '+' && i == 0 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
