package validation

import (
	"reflect"
	"regexp"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// At most 15 characters including the optional +, the width of orders.phone.
var phonePattern = regexp.MustCompile(`^(\+[0-9]{7,14}|[0-9]{7,15})$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "")

// New returns a validator with the custom rules registered. Field names in
// errors use the json tag so clients see the names they sent.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// registration only fails on an empty tag or nil func
	_ = v.RegisterValidation("phone", validatePhone)

	return v
}

// NormalizePhone drops spaces and dashes. Store this form, not the raw input.
func NormalizePhone(s string) string {
	return phoneSeparators.Replace(strings.TrimSpace(s))
}

// validatePhone checks the normalized number: digits with an optional
// leading +, 15 characters at most.
func validatePhone(fl validatorv10.FieldLevel) bool {
	return phonePattern.MatchString(NormalizePhone(fl.Field().String()))
}
