// Package validation checks request payloads with struct tags and strips
// markup from free text before it is stored.
package validation

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/equitraccion/site/pkg/apiresponses"
)

// MaxEmailLength is the longest address accepted by RFC 5321.
const MaxEmailLength = 254

type Validator struct {
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names so messages match what the client sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{
		validate:  v,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Struct validates s. A rule violation comes back as an *apiresponses.ValidationError
// naming the first violated rule; anything else means s is not a validatable struct.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return &apiresponses.ValidationError{Message: message(verrs[0])}
}

// Email checks a single address.
func (v *Validator) Email(email string) error {
	if email == "" {
		return apiresponses.NewValidationError("email is required")
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return apiresponses.NewValidationError("email is too long")
	}
	if err := v.validate.Var(email, "email"); err != nil {
		return apiresponses.NewValidationError("invalid email format")
	}
	return nil
}

// Text removes every HTML element from s and trims surrounding space.
// Entities are decoded again so the stored value is plain text.
func (v *Validator) Text(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(v.sanitizer.Sanitize(s)))
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
