// Package validation validates request payloads and sanitizes user supplied markup.
package validation

import (
	"reflect"
	"strings"

	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Validator validates structs and reports failures as errors.Invalid with one field per failure
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a validator that names fields after their form or json tag
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return &Validator{validator: v}
}

// Validate checks i against its validate tags.
func (v *Validator) Validate(i interface{}) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}

	validationErr := errors.Invalid.Explain("validation error")
	var fieldsError validator.ValidationErrors
	if errors.As(err, &fieldsError) {
		fields := make([]errors.FieldError, 0, len(fieldsError))
		for _, fieldErr := range fieldsError {
			fields = append(fields, errors.NewFieldError(fieldErr.Tag(), fieldErr.Field(), message(fieldErr)))
		}
		return validationErr.WithFields(fields)
	}
	return validationErr.Wrap(err)
}

// Var checks a single value against tag.
func (v *Validator) Var(field string, value interface{}, tag string) error {
	if err := v.validator.Var(value, tag); err != nil {
		var fieldsError validator.ValidationErrors
		if errors.As(err, &fieldsError) && len(fieldsError) > 0 {
			return errors.Invalid.Explain("validation error").WithField(fieldsError[0].Tag(), field, message(fieldsError[0]))
		}
		return errors.Invalid.Explain("validation error").Wrap(err)
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "Ensure this value has at most " + fe.Param() + " characters."
	case "oneof":
		return "Select a valid choice."
	case "uuid", "uuid4":
		return "Enter a valid identifier."
	default:
		return "Enter a valid value."
	}
}

// Sanitizer cleans field values before they are stored
type Sanitizer struct {
	html *bluemonday.Policy
}

// NewSanitizer allows the markup of user generated content in html values
func NewSanitizer() *Sanitizer {
	return &Sanitizer{html: bluemonday.UGCPolicy()}
}

// Value returns value cleaned for its value type. Only html values carry markup;
// every other type is stored as trimmed plain text and escaped on output.
func (s *Sanitizer) Value(valueType, value string) string {
	if valueType == models.ValueTypeHTML {
		return strings.TrimSpace(s.html.Sanitize(value))
	}
	return strings.TrimSpace(value)
}
