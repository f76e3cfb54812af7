package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError points at a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result collects field errors from a validation pass. Validation is a pure
// function over input values; it never touches storage.
type Result struct {
	Errors []FieldError
}

func (r *Result) Add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

func (r *Result) Addf(field, format string, args ...interface{}) {
	r.Add(field, fmt.Sprintf(format, args...))
}

func (r *Result) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Result) Error() string {
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Error())
	}
	return strings.Join(messages, "; ")
}

// AsError returns the result as an error, or nil when validation passed.
func (r *Result) AsError() error {
	if r.Ok() {
		return nil
	}
	return r
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether the address is syntactically acceptable.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
