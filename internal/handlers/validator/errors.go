package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var tagMessages = map[string]string{
	"required":   "is required",
	"repo_url":   "must be a valid absolute url",
	"job_class":  "must be a valid class tag",
	"job_status": "must be one of done, error",
	"uuid4":      "must be a valid uuid",
	"max":        "is too long",
}

// Issues flattens a validation error into one message per failed field.
func Issues(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, found := tagMessages[fe.Tag()]
		if !found {
			msg = fmt.Sprintf("failed on the %s rule", fe.Tag())
		}
		issues = append(issues, fmt.Sprintf("%s %s", fe.Field(), msg))
	}
	return issues
}
