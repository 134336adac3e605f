package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const PasswordMinLength = 8

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

var fieldMessages = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"min":      "%s must be at least %s characters",
	"max":      "%s must be at most %s characters",
	"eqfield":  "%s does not match",
	"oneof":    "%s must be one of %s",
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct checks s against its `validate` tags and returns field -> message.
// An empty map means s is valid.
func ValidateStruct(s any) map[string]string {
	out := map[string]string{}
	err := validatorInstance().Struct(s)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = fieldMessage(field, fe)
	}
	return out
}

func fieldMessage(field string, fe validator.FieldError) string {
	tmpl, ok := fieldMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", field)
	}
	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}
	return fmt.Sprintf(tmpl, field)
}

func ValidateEmail(s string) error {
	if err := validatorInstance().Var(strings.TrimSpace(s), "required,email"); err != nil {
		return errors.New("invalid email")
	}
	return nil
}

func ValidatePassword(s string) error {
	if len(s) < PasswordMinLength {
		return fmt.Errorf("password too short (min %d chars)", PasswordMinLength)
	}
	return nil
}
