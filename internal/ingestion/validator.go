package ingestion

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"facility-uptime-monitor/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateStatusReport checks required fields and lengths, then strips control
// characters from the identifiers.
func ValidateStatusReport(msg *StatusReportMessage) error {
	if msg == nil {
		return &ValidationError{Field: "body", Message: "request body is required"}
	}

	if err := validate.Struct(msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Field(), Message: describe(fe)}
		}
		return &ValidationError{Field: "body", Message: err.Error()}
	}

	msg.DeviceID = utils.SanitizeIdentifier(msg.DeviceID)
	msg.Type = utils.SanitizeIdentifier(msg.Type)
	msg.DeviceName = utils.SanitizeIdentifier(msg.DeviceName)
	if msg.DeviceID == "" {
		return &ValidationError{Field: "deviceID", Message: "deviceID is required"}
	}
	if msg.Type == "" {
		return &ValidationError{Field: "type", Message: "type is required"}
	}
	if strings.Contains(msg.Type, "/") || strings.Contains(msg.DeviceID, "/") {
		return &ValidationError{Field: "deviceID", Message: "type and deviceID must not contain '/'"}
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
