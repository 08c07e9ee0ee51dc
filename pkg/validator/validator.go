package validator

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// FieldError is one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email",
	"min":            "is too short",
	"max":            "is too long",
	"gt":             "must be greater than zero",
	"gte":            "must not be negative",
	"uuid":           "must be a valid id",
	"slotdate":       "must be a date in DD_MM_YYYY form",
	"slottime":       "must be a time in hh:mm AM form",
	"strongpassword": "must be at least 8 characters with an uppercase letter, a lowercase letter and a digit",
}

// New returns a validator with the clinic rules registered.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register adds the custom tags and JSON field naming to v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return snakeCase(fld.Name)
		}
		return name
	})

	rules := map[string]validator.Func{
		"slotdate": func(fl validator.FieldLevel) bool {
			_, err := model.NormalizeSlotDate(fl.Field().String())
			return err == nil
		},
		"slottime": func(fl validator.FieldLevel) bool {
			_, err := model.NormalizeSlotTime(fl.Field().String())
			return err == nil
		},
		"strongpassword": func(fl validator.FieldLevel) bool {
			return IsStrongPassword(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// IsStrongPassword requires 8+ characters with upper, lower and digit.
func IsStrongPassword(p string) bool {
	if len(p) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Describe flattens validation errors into field messages. Other errors yield nil.
func Describe(err error) []FieldError {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = "failed " + e.Tag() + " validation"
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}

// Summary joins Describe into a single human-readable line.
func Summary(err error) string {
	fields := Describe(err)
	if len(fields) == 0 {
		return err.Error()
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + " " + f.Message
	}
	return strings.Join(parts, "; ")
}

// snakeCase turns a Go field name into the JSON style used elsewhere, e.g. PatientID -> patient_id.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1])
			endsAcronym := i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || endsAcronym {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
