package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"
)

// Validator is a wrapper around the validator library with the watcher's
// custom rules registered:
//
//	regexp    the field compiles as a Go regular expression
//	selector  the field compiles as a CSS selector
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("regexp", isRegexp)
	_ = v.RegisterValidation("selector", isSelector)
	return &Validator{validate: v}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %s", describe(err))
	}
	return nil
}

func isRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

func isSelector(fl validator.FieldLevel) bool {
	_, err := cascadia.Compile(fl.Field().String())
	return err == nil
}

// describe turns validator field errors into one line per field.
func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "regexp":
			msgs = append(msgs, fmt.Sprintf("%s is not a valid regular expression: %q", fe.Namespace(), fe.Value()))
		case "selector":
			msgs = append(msgs, fmt.Sprintf("%s is not a valid CSS selector: %q", fe.Namespace(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return strings.Join(msgs, "; ")
}
