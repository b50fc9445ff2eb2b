package validator

import (
	"net/url"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var classValidRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

func repoURLValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	u, err := url.Parse(val)
	if err != nil {
		return false
	}

	// absolute URLs only
	return u.Scheme != "" && u.Host != ""
}

func jobClassValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	if len(val) > 63 {
		return false
	}

	return classValidRegex.MatchString(val)
}

func jobStatusValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	switch val {
	case "done":
		fallthrough
	case "error":
		return true
	default:
		return false
	}
}
