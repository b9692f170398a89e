package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
)

// ValidationError is one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"civildate": civilDate,
			"clock":     clockTime,
		},
		CustomErrorMessages: map[string]string{
			"required":  "Field is required",
			"email":     "Invalid email format",
			"min":       "Value is too small",
			"max":       "Value is too large",
			"uuid":      "Invalid identifier",
			"oneof":     "Value is not allowed",
			"civildate": "Date must be formatted as YYYY-MM-DD",
			"clock":     "Time must be formatted as HH:MM",
		},
	}
}

// civilDate accepts YYYY-MM-DD.
func civilDate(fl validator.FieldLevel) bool {
	d, err := model.ParseDate(fl.Field().String())
	return err == nil && !d.IsZero()
}

// clockTime accepts HH:MM.
func clockTime(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.ClockLayout, fl.Field().String())
	return err == nil
}

// Validation registers the custom binding validators and turns binding
// validation failures into a field-by-field 400 response.
func Validation(config ValidationConfig) gin.HandlerFunc {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		var validationErrors []ValidationError
		for _, err := range c.Errors {
			var errs validator.ValidationErrors
			if !errors.As(err.Err, &errs) {
				continue
			}
			for _, e := range errs {
				msg := config.CustomErrorMessages[e.Tag()]
				if msg == "" {
					msg = e.Error()
				}
				validationErrors = append(validationErrors, ValidationError{
					Field:   e.Field(),
					Message: msg,
				})
			}
		}

		if len(validationErrors) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				handler.NewErrorResponseWithData("validation failed", validationErrors))
		}
	}
}
