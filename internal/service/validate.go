package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"pharmacy/internal/domain"
)

var expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("mmyy", func(fl validator.FieldLevel) bool {
		return expiryRe.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct turns validator failures into a per-field ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return &domain.ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "email":
		return "Please enter a valid email address"
	case "len":
		return fmt.Sprintf("Please enter a valid %s-digit value", fe.Param())
	case "number", "numeric":
		return "Only digits are allowed"
	case "min", "max":
		return fmt.Sprintf("Length must satisfy %s=%s", fe.Tag(), fe.Param())
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "mmyy":
		return "Please enter a valid date (MM/YY)"
	}
	return "Invalid value"
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
