// Package validation registers the form rules used by request structs and
// probes required services at startup.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	PasswordMinBytes = 8
	// bcrypt ignores everything past 72 bytes
	PasswordMaxBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

var (
	ErrPasswordLength    = errors.New("password must be 8 to 72 bytes")
	ErrPasswordUpper     = errors.New("password needs an uppercase letter")
	ErrPasswordLower     = errors.New("password needs a lowercase letter")
	ErrPasswordDigit     = errors.New("password needs a digit")
	ErrPasswordSymbol    = errors.New("password needs a symbol")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrUsernameInvalid   = errors.New("username must be 3 to 20 lowercase letters, digits or underscores")
	errValidatorUnhooked = errors.New("gin validator engine is not go-playground/validator")
)

func init() {
	if err := Register(); err != nil {
		panic(err)
	}
}

// Register installs the custom rules on gin's validator. It is safe to call
// more than once.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errValidatorUnhooked
	}

	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return CheckPassword(fl.Field().String()) == nil
	})
}

// jsonFieldName reports fields by their json name so errors match the
// request body
func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ValidUsername reports whether s is 3..20 of [a-z0-9_]
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// CheckPassword returns the first complexity rule p breaks
func CheckPassword(p string) error {
	if len(p) < PasswordMinBytes || len(p) > PasswordMaxBytes {
		return ErrPasswordLength
	}

	var upper, lower, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	switch {
	case !upper:
		return ErrPasswordUpper
	case !lower:
		return ErrPasswordLower
	case !digit:
		return ErrPasswordDigit
	case !symbol:
		return ErrPasswordSymbol
	}
	return nil
}

// CheckPasswordPair validates a new password and its confirmation
func CheckPasswordPair(password, confirm string) error {
	if err := CheckPassword(password); err != nil {
		return err
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// Struct validates s with the shared engine
func Struct(s interface{}) error {
	return binding.Validator.ValidateStruct(s)
}

// FieldError is the first failing field of a validation error
type FieldError struct {
	Field   string
	Message string
}

// FirstError extracts the first failing field from err. ok is false when
// err did not come from the validator.
func FirstError(err error) (FieldError, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return FieldError{}, false
	}
	fe := verrs[0]
	return FieldError{Field: fe.Field(), Message: message(fe)}, true
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + lengthUnit(fe)
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + lengthUnit(fe)
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "eqfield":
		return ErrPasswordMismatch.Error()
	case "username":
		return ErrUsernameInvalid.Error()
	case "password":
		if s, ok := fe.Value().(string); ok {
			if err := CheckPassword(s); err != nil {
				return err.Error()
			}
		}
	case "uuid", "uuid4":
		return fe.Field() + " must be a valid id"
	case "url":
		return fe.Field() + " must be a valid URL"
	}
	return fe.Field() + " is invalid"
}

func lengthUnit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	}
	return ""
}
