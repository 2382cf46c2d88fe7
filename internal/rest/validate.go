package rest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the validate tags of v and reports every failing field.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}

	messages := make([]string, 0, len(fields))
	for _, f := range fields {
		messages = append(messages, f.Field()+": "+describe(f))
	}
	return ValidationError{Messages: messages}
}

func describe(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(f.Param()), ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", f.Param())
	}
	return "is invalid"
}

// Malformed reports an unreadable request body or path parameter.
func Malformed(field, reason string) error {
	if field == "" {
		return ValidationError{Messages: []string{reason}}
	}
	return ValidationError{Messages: []string{field + ": " + reason}}
}
